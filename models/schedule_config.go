package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ScheduleConfigID is the primary key of the single app_settings row.
const ScheduleConfigID uint = 1

// Weekday names accepted in ScheduleDays, lowercase.
var scheduleWeekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ScheduleConfig is the single-row schedule state for the run controller:
// which days-of-week cycles fire, at what local time, and when the last
// successful run happened. Only the run controller reads or writes it.
type ScheduleConfig struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	ScheduleDays pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"schedule_days"`
	ScheduleTime string         `gorm:"size:5;not null;default:'09:00'" json:"schedule_time"`
	LastRunAt    *time.Time     `json:"last_run_at,omitempty"`
	UpdatedAt    time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (ScheduleConfig) TableName() string { return "app_settings" }

// ParseScheduleTime returns the configured hour and minute of day.
func (c *ScheduleConfig) ParseScheduleTime() (hour, minute int, err error) {
	parts := strings.SplitN(c.ScheduleTime, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed schedule time %q", c.ScheduleTime)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("malformed schedule hour %q", c.ScheduleTime)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("malformed schedule minute %q", c.ScheduleTime)
	}
	return hour, minute, nil
}

// DayEnabled reports whether the given weekday is among the configured
// schedule days. An empty configuration enables no days.
func (c *ScheduleConfig) DayEnabled(day time.Weekday) bool {
	for _, name := range c.ScheduleDays {
		if wd, ok := scheduleWeekdays[strings.ToLower(strings.TrimSpace(name))]; ok && wd == day {
			return true
		}
	}
	return false
}

// ValidScheduleDay reports whether name is a recognized weekday name.
func ValidScheduleDay(name string) bool {
	_, ok := scheduleWeekdays[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// WeeklyMatch is the immutable record of a pair produced for one cycle.
// Rows are only ever inserted by a successful run.
type WeeklyMatch struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CycleDate time.Time `gorm:"type:date;not null;uniqueIndex:uk_weekly_matches_cycle_pair,priority:1;index:idx_weekly_matches_cycle_date" json:"cycle_date"`
	UserA     int64     `gorm:"not null;uniqueIndex:uk_weekly_matches_cycle_pair,priority:2" json:"user_a"`
	UserB     int64     `gorm:"not null;uniqueIndex:uk_weekly_matches_cycle_pair,priority:3" json:"user_b"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (WeeklyMatch) TableName() string { return "weekly_matches" }

// BeforeSave rejects rows that violate canonical ordering.
func (w *WeeklyMatch) BeforeSave(tx *gorm.DB) error {
	if w.UserA >= w.UserB {
		return fmt.Errorf("weekly match (%d, %d) is not in canonical order", w.UserA, w.UserB)
	}
	return nil
}

// WeeklyMatchFilter represents filter criteria for weekly match queries
type WeeklyMatchFilter struct {
	ID        *uint
	CycleDate *time.Time
	UserA     *int64
	UserB     *int64
}

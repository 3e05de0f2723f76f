package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/convivio/convivio/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RunKind identifies which program a run executed.
type RunKind string

const (
	RunKindCoffeeChat RunKind = "coffee_chat"
	RunKindMentorship RunKind = "mentorship"
)

// Valid checks if the run kind is valid.
func (k RunKind) Valid() bool {
	switch k {
	case RunKindCoffeeChat, RunKindMentorship:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RunKind.
func (k *RunKind) Scan(value any) error {
	if value == nil {
		*k = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*k = RunKind(v)
	case []byte:
		*k = RunKind(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RunKind", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RunKind.
func (k RunKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid RunKind: %s", k)
	}
	return string(k), nil
}

// RunType distinguishes scheduled from administrator-triggered runs.
type RunType string

const (
	RunTypeScheduled RunType = "scheduled"
	RunTypeManual    RunType = "manual"
)

// Valid checks if the run type is valid.
func (t RunType) Valid() bool {
	return t == RunTypeScheduled || t == RunTypeManual
}

// RunStatus is the state of a run record.
type RunStatus string

const (
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// Valid checks if the status is valid.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusInProgress, RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RunStatus.
func (s *RunStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = RunStatus(v)
	case []byte:
		*s = RunStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RunStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RunStatus.
func (s RunStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid RunStatus: %s", s)
	}
	return string(s), nil
}

// RunRecord is the append-only audit row for one execution of the matching
// engine. A record transitions in_progress -> completed|failed and is never
// mutated afterwards. The partial unique index keeps at most one in_progress
// row per run kind, which doubles as the mutual-exclusion marker between the
// scheduled and manual triggers.
type RunRecord struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_run_logs_uuid" json:"uuid"`
	RunKind     RunKind    `gorm:"size:20;not null;index:idx_run_logs_run_kind;uniqueIndex:uk_run_logs_in_progress,where:status = 'in_progress'" json:"run_kind"`
	RunType     RunType    `gorm:"size:20;not null" json:"run_type"`
	StartedAt   time.Time  `gorm:"not null;index:idx_run_logs_started_at" json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	TriggeredBy string     `gorm:"size:255;not null" json:"triggered_by"`
	PairCount   int        `gorm:"not null;default:0" json:"pair_count"`
	Status      RunStatus  `gorm:"size:20;not null;default:'in_progress';index:idx_run_logs_status" json:"status"`
	ErrorText   *string    `gorm:"type:text" json:"error_text,omitempty"`
	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (RunRecord) TableName() string { return "run_logs" }

// BeforeCreate ensures UUID and timestamps are set.
func (r *RunRecord) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = utils.UTCNow()
	}
	return nil
}

// RunRecordFilter represents filter criteria for run record queries
type RunRecordFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	RunKind       *RunKind
	RunType       *RunType
	Status        *RunStatus
	StartedAfter  *time.Time
	StartedBefore *time.Time
}

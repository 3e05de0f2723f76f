package dto

import (
	"time"

	"github.com/google/uuid"
)

// RunMatchingRequest is the manual trigger payload. TriggeredBy identifies
// the administrator for the audit trail.
type RunMatchingRequest struct {
	TriggeredBy string `json:"triggered_by" validate:"required,min=1,max=255"`
}

// RunResultResponse is the outcome summary of one matching run.
type RunResultResponse struct {
	UUID        uuid.UUID  `json:"uuid"`
	Program     string     `json:"program"`
	RunType     string     `json:"run_type"`
	Status      string     `json:"status"`
	PairCount   int        `json:"pair_count"`
	TriggeredBy string     `json:"triggered_by"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	ErrorText   *string    `json:"error_text,omitempty"`
}

// ListRunsRequest bounds how much run history is returned.
type ListRunsRequest struct {
	Limit int `json:"limit" query:"limit" validate:"omitempty,min=1,max=200"`
}

// ListRunsResponse is the recent run history, newest first.
type ListRunsResponse struct {
	Runs  []RunResultResponse `json:"runs"`
	Total int                 `json:"total"`
}

// ScheduleResponse mirrors the single-row schedule configuration.
type ScheduleResponse struct {
	ScheduleDays []string   `json:"schedule_days"`
	ScheduleTime string     `json:"schedule_time"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
}

// UpdateScheduleRequest updates the schedule days and/or time of day.
// Omitted fields are left unchanged.
type UpdateScheduleRequest struct {
	ScheduleDays *[]string `json:"schedule_days,omitempty" validate:"omitempty,max=7,dive,min=1"`
	ScheduleTime *string   `json:"schedule_time,omitempty" validate:"omitempty,len=5"`
}

// StatsResponse is the operational summary for the admin dashboard.
type StatsResponse struct {
	EligibleParticipants int64              `json:"eligible_participants"`
	Mentors              int64              `json:"mentors"`
	Mentees              int64              `json:"mentees"`
	ActiveMentorships    int64              `json:"active_mentorships"`
	PairsThisCycle       int64              `json:"pairs_this_cycle"`
	LastRun              *RunResultResponse `json:"last_run,omitempty"`
}

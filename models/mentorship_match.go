package models

import (
	"time"
)

// MentorshipMatch is one mentor-mentee assignment. A pair has at most one
// row; superseded assignments are deactivated, never deleted, and a later
// run may reactivate the same pair.
type MentorshipMatch struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	MentorID      int64      `gorm:"not null;uniqueIndex:uk_mentorship_matches_pair,priority:1;index:idx_mentorship_matches_mentor_id" json:"mentor_id"`
	MenteeID      int64      `gorm:"not null;uniqueIndex:uk_mentorship_matches_pair,priority:2" json:"mentee_id"`
	Active        *bool      `gorm:"not null;default:true;index:idx_mentorship_matches_active" json:"active"`
	MatchedAt     time.Time  `gorm:"not null" json:"matched_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (MentorshipMatch) TableName() string { return "mentorship_matches" }

// MentorshipMatchFilter represents filter criteria for mentorship match queries
type MentorshipMatchFilter struct {
	ID            *uint
	MentorID      *int64
	MenteeID      *int64
	Active        *bool
	MatchedAfter  *time.Time
	MatchedBefore *time.Time
}

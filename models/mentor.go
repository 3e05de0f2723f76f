package models

import (
	"time"

	"github.com/lib/pq"
)

// Mentor is the mentorship-program profile of a directory user who offers
// mentoring. Capacity bounds the number of concurrently active mentees.
type Mentor struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UserID          int64          `gorm:"not null;uniqueIndex:uk_mentorship_mentors_user_id" json:"user_id"`
	Tags            pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"tags"`
	MonthlyCapacity int            `gorm:"not null;default:1" json:"monthly_capacity"`
	CreatedAt       time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

func (Mentor) TableName() string { return "mentorship_mentors" }

// MentorFilter represents filter criteria for mentor queries
type MentorFilter struct {
	ID          *uint
	UserID      *int64
	MinCapacity *int
}

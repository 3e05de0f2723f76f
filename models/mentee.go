package models

import (
	"time"

	"github.com/lib/pq"
)

// Mentee is the mentorship-program profile of a directory user looking for
// a mentor. CreatedAt doubles as the waiting-priority key: older requests
// are matched first.
type Mentee struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         int64          `gorm:"not null;uniqueIndex:uk_mentorship_mentees_user_id" json:"user_id"`
	Interests      pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"interests"`
	PreferenceMode *string        `gorm:"size:50" json:"preference_mode,omitempty"`
	AvailableFrom  *time.Time     `json:"available_from,omitempty"`
	AvailableTo    *time.Time     `json:"available_to,omitempty"`
	CreatedAt      time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_mentorship_mentees_created_at" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

func (Mentee) TableName() string { return "mentorship_mentees" }

// MenteeFilter represents filter criteria for mentee queries
type MenteeFilter struct {
	ID     *uint
	UserID *int64
}

// Package models contains domain entities and business models for the community matching engine
package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// UserStatus represents the approval state of a directory user.
type UserStatus string

const (
	UserStatusPending           UserStatus = "pending"
	UserStatusApproved          UserStatus = "approved"
	UserStatusRejected          UserStatus = "rejected"
	UserStatusDeletionRequested UserStatus = "deletion_requested"
	UserStatusLeft              UserStatus = "left"
)

// Valid checks if the status is valid.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusPending,
		UserStatusApproved,
		UserStatusRejected,
		UserStatusDeletionRequested,
		UserStatusLeft:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for UserStatus.
func (s *UserStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = UserStatus(v)
	case []byte:
		*s = UserStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into UserStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for UserStatus.
func (s UserStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid UserStatus: %s", s)
	}
	return string(s), nil
}

// CommunicationMode controls which channels a participant is notified on.
type CommunicationMode string

const (
	CommunicationModeTelegramOnly CommunicationMode = "telegram_only"
	CommunicationModeEmailOnly    CommunicationMode = "email_only"
	CommunicationModeBoth         CommunicationMode = "email+telegram"
)

// WantsTelegram reports whether the mode includes Telegram delivery.
func (m CommunicationMode) WantsTelegram() bool {
	return m == CommunicationModeTelegramOnly || m == CommunicationModeBoth || m == ""
}

// WantsEmail reports whether the mode includes email delivery.
func (m CommunicationMode) WantsEmail() bool {
	return m == CommunicationModeEmailOnly || m == CommunicationModeBoth || m == ""
}

// User is a directory profile. The matching engine only reads this table;
// registration and approval live in the dashboard backend.
type User struct {
	ID                int64             `gorm:"primaryKey" json:"id"`
	Username          *string           `gorm:"size:255;index:idx_users_username" json:"username,omitempty"`
	FullName          string            `gorm:"size:255;not null" json:"full_name"`
	Email             *string           `gorm:"size:255;index:idx_users_email" json:"email,omitempty"`
	Subscribed        *bool             `gorm:"default:false;index:idx_users_subscribed" json:"subscribed"`
	CommunicationMode CommunicationMode `gorm:"size:20;not null;default:'email+telegram'" json:"communication_mode"`
	Status            UserStatus        `gorm:"size:20;not null;default:'pending';index:idx_users_status" json:"status"`
	Segment           *string           `gorm:"size:255" json:"segment,omitempty"`
	Affiliation       *string           `gorm:"size:255" json:"affiliation,omitempty"`
	About             *string           `gorm:"type:text" json:"about,omitempty"`
	MentorFlag        *bool             `gorm:"default:false;index:idx_users_mentor_flag" json:"mentor_flag"`
	MenteeFlag        *bool             `gorm:"default:false;index:idx_users_mentee_flag" json:"mentee_flag"`
	CreatedAt         time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID            *int64
	Username      *string
	Email         *string
	Subscribed    *bool
	Status        *UserStatus
	Segment       *string
	Affiliation   *string
	MentorFlag    *bool
	MenteeFlag    *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

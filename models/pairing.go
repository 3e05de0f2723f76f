package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Pairing is the coffee-chat history row for one unordered pair of
// participants. Exactly one row exists per pair; UserA < UserB always holds.
type Pairing struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserA         int64     `gorm:"not null;uniqueIndex:uk_pairings_pair,priority:1" json:"user_a"`
	UserB         int64     `gorm:"not null;uniqueIndex:uk_pairings_pair,priority:2" json:"user_b"`
	LastMatchedAt time.Time `gorm:"not null;index:idx_pairings_last_matched_at" json:"last_matched_at"`
	CreatedAt     time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Pairing) TableName() string { return "pairings" }

// BeforeSave rejects rows that violate canonical ordering. Ordering is the
// caller's job; this hook is the backstop that keeps the table consistent.
func (p *Pairing) BeforeSave(tx *gorm.DB) error {
	if p.UserA >= p.UserB {
		return fmt.Errorf("pairing (%d, %d) is not in canonical order", p.UserA, p.UserB)
	}
	return nil
}

// PairingFilter represents filter criteria for pairing queries
type PairingFilter struct {
	ID            *uint
	UserA         *int64
	UserB         *int64
	MatchedAfter  *time.Time
	MatchedBefore *time.Time
}

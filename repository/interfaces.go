// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/convivio/convivio/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Update(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// PairKey is an unordered participant pair in canonical order (A < B),
// used as the history map key.
type PairKey struct {
	A int64
	B int64
}

// UserRepository defines read operations against the directory. The matching
// engine never writes users.
type UserRepository interface {
	ByUserID(ctx context.Context, userID int64) (*models.User, error)
	ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error)
	ListEligible(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context, filter models.UserFilter) (int64, error)
}

// PairingRepository defines operations for coffee-chat pairing history
type PairingRepository interface {
	Repository[models.Pairing, models.PairingFilter]
	ByPair(ctx context.Context, userA, userB int64) (*models.Pairing, error)
	HistoryForPool(ctx context.Context, userIDs []int64) (map[PairKey]time.Time, error)
	UpsertLastMatched(ctx context.Context, userA, userB int64, matchedAt time.Time) error
}

// WeeklyMatchRepository defines operations for per-cycle match records
type WeeklyMatchRepository interface {
	Repository[models.WeeklyMatch, models.WeeklyMatchFilter]
	ListByCycleDate(ctx context.Context, cycleDate time.Time) ([]*models.WeeklyMatch, error)
}

// MentorRepository defines operations for mentorship mentors
type MentorRepository interface {
	Repository[models.Mentor, models.MentorFilter]
	ByUserID(ctx context.Context, userID int64) (*models.Mentor, error)
	ListAll(ctx context.Context) ([]*models.Mentor, error)
}

// MenteeRepository defines operations for mentorship mentees
type MenteeRepository interface {
	Repository[models.Mentee, models.MenteeFilter]
	ByUserID(ctx context.Context, userID int64) (*models.Mentee, error)
	ListByWaitingPriority(ctx context.Context) ([]*models.Mentee, error)
}

// MentorshipMatchRepository defines operations for mentor-mentee assignments
type MentorshipMatchRepository interface {
	Repository[models.MentorshipMatch, models.MentorshipMatchFilter]
	ByPair(ctx context.Context, mentorID, menteeID int64) (*models.MentorshipMatch, error)
	ListActive(ctx context.Context) ([]*models.MentorshipMatch, error)
	ActiveCountByMentor(ctx context.Context) (map[int64]int, error)
	UpsertActive(ctx context.Context, mentorID, menteeID int64, matchedAt time.Time) error
	Deactivate(ctx context.Context, mentorID, menteeID int64, at time.Time) error
}

// RunRecordRepository defines operations for the run audit trail
type RunRecordRepository interface {
	Repository[models.RunRecord, models.RunRecordFilter]
	InProgressByKind(ctx context.Context, kind models.RunKind) (*models.RunRecord, error)
	LastCompletedByKind(ctx context.Context, kind models.RunKind) (*models.RunRecord, error)
	Finalize(ctx context.Context, id uint, status models.RunStatus, pairCount int, errorText *string, finishedAt time.Time) error
	ListRecent(ctx context.Context, limit int) ([]*models.RunRecord, error)
}

// ScheduleConfigRepository defines operations for the single-row schedule state
type ScheduleConfigRepository interface {
	Get(ctx context.Context) (*models.ScheduleConfig, error)
	SetScheduleDays(ctx context.Context, days []string) error
	SetScheduleTime(ctx context.Context, timeOfDay string) error
	AdvanceLastRun(ctx context.Context, lastRunAt time.Time) error
}

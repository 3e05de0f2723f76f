package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/convivio/convivio/models"
	"github.com/convivio/convivio/repository"
	"github.com/convivio/convivio/utils"
)

// MatchingStats is a point-in-time summary of the matching population and
// the most recent run.
type MatchingStats struct {
	EligibleParticipants int64
	Mentors              int64
	Mentees              int64
	ActiveMentorships    int64
	PairsThisCycle       int64
	LastRun              *models.RunRecord
}

// ScheduleFlow manages the schedule configuration and operational stats.
type ScheduleFlow interface {
	GetSchedule(ctx context.Context) (*models.ScheduleConfig, error)
	UpdateScheduleDays(ctx context.Context, days []string) (*models.ScheduleConfig, error)
	UpdateScheduleTime(ctx context.Context, timeOfDay string) (*models.ScheduleConfig, error)
	Stats(ctx context.Context) (*MatchingStats, error)
}

type ScheduleFlowImpl struct {
	scheduleRepo repository.ScheduleConfigRepository
	userRepo     repository.UserRepository
	mentorRepo   repository.MentorRepository
	menteeRepo   repository.MenteeRepository
	matchRepo    repository.MentorshipMatchRepository
	weeklyRepo   repository.WeeklyMatchRepository
	runRepo      repository.RunRecordRepository
	clock        Clock
	loc          *time.Location
}

func NewScheduleFlow(
	scheduleRepo repository.ScheduleConfigRepository,
	userRepo repository.UserRepository,
	mentorRepo repository.MentorRepository,
	menteeRepo repository.MenteeRepository,
	matchRepo repository.MentorshipMatchRepository,
	weeklyRepo repository.WeeklyMatchRepository,
	runRepo repository.RunRecordRepository,
	clock Clock,
	loc *time.Location,
) ScheduleFlow {
	if clock == nil {
		clock = UTCClock
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleFlowImpl{
		scheduleRepo: scheduleRepo,
		userRepo:     userRepo,
		mentorRepo:   mentorRepo,
		menteeRepo:   menteeRepo,
		matchRepo:    matchRepo,
		weeklyRepo:   weeklyRepo,
		runRepo:      runRepo,
		clock:        clock,
		loc:          loc,
	}
}

func (s *ScheduleFlowImpl) GetSchedule(ctx context.Context) (*models.ScheduleConfig, error) {
	cfg, err := s.scheduleRepo.Get(ctx)
	if err != nil {
		return nil, NewBusinessError("SCHEDULE_READ_FAILED", "Failed to read schedule configuration", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return cfg, nil
}

func (s *ScheduleFlowImpl) UpdateScheduleDays(ctx context.Context, days []string) (*models.ScheduleConfig, error) {
	for _, d := range days {
		if !models.ValidScheduleDay(d) {
			return nil, NewBusinessError("INVALID_SCHEDULE_DAY", fmt.Sprintf("Unrecognized schedule day %q", d), ErrInvalidScheduleDay)
		}
	}
	if err := s.scheduleRepo.SetScheduleDays(ctx, days); err != nil {
		return nil, NewBusinessError("SCHEDULE_UPDATE_FAILED", "Failed to update schedule days", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return s.GetSchedule(ctx)
}

func (s *ScheduleFlowImpl) UpdateScheduleTime(ctx context.Context, timeOfDay string) (*models.ScheduleConfig, error) {
	probe := models.ScheduleConfig{ScheduleTime: timeOfDay}
	if _, _, err := probe.ParseScheduleTime(); err != nil {
		return nil, NewBusinessError("INVALID_SCHEDULE_TIME", fmt.Sprintf("Malformed schedule time %q, want HH:MM", timeOfDay), fmt.Errorf("%w: %w", ErrInvalidScheduleTime, err))
	}
	if err := s.scheduleRepo.SetScheduleTime(ctx, timeOfDay); err != nil {
		return nil, NewBusinessError("SCHEDULE_UPDATE_FAILED", "Failed to update schedule time", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return s.GetSchedule(ctx)
}

func (s *ScheduleFlowImpl) Stats(ctx context.Context) (*MatchingStats, error) {
	stats := &MatchingStats{}

	approved := models.UserStatusApproved
	eligible, err := s.userRepo.Count(ctx, models.UserFilter{Status: &approved, Subscribed: utils.ToPtr(true)})
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to count eligible participants", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	stats.EligibleParticipants = eligible

	mentors, err := s.mentorRepo.Count(ctx, models.MentorFilter{})
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to count mentors", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	stats.Mentors = mentors

	mentees, err := s.menteeRepo.Count(ctx, models.MenteeFilter{})
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to count mentees", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	stats.Mentees = mentees

	active, err := s.matchRepo.Count(ctx, models.MentorshipMatchFilter{Active: utils.ToPtr(true)})
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to count active mentorships", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	stats.ActiveMentorships = active

	cycle := utils.CycleMonday(s.clock(), s.loc)
	pairs, err := s.weeklyRepo.Count(ctx, models.WeeklyMatchFilter{CycleDate: &cycle})
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to count pairs this cycle", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	stats.PairsThisCycle = pairs

	recent, err := s.runRepo.ListRecent(ctx, 1)
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to load last run", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	if len(recent) > 0 {
		stats.LastRun = recent[0]
	}

	return stats, nil
}

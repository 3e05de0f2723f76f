package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/convivio/convivio/models"
	"github.com/convivio/convivio/repository"
	"github.com/convivio/convivio/utils"
	"gorm.io/gorm"
)

// RunFlow is the run controller: the only entry point that executes a
// matching cycle. Both the scheduler and the admin API go through it, so
// mutual exclusion, audit records, and schedule advancement live here.
type RunFlow interface {
	// RunMatching executes one cycle of the given program. runType
	// scheduled enforces the due-check; manual bypasses it but still takes
	// the per-kind run lock.
	RunMatching(ctx context.Context, program string, runType models.RunType, triggeredBy string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error)
}

type RunFlowImpl struct {
	eligibility  EligibilityFlow
	pairingRepo  repository.PairingRepository
	weeklyRepo   repository.WeeklyMatchRepository
	matchRepo    repository.MentorshipMatchRepository
	runRepo      repository.RunRecordRepository
	scheduleRepo repository.ScheduleConfigRepository
	notifier     MatchNotifier
	db           *gorm.DB
	clock        Clock
	loc          *time.Location
	lookback     time.Duration
}

func NewRunFlow(
	eligibility EligibilityFlow,
	pairingRepo repository.PairingRepository,
	weeklyRepo repository.WeeklyMatchRepository,
	matchRepo repository.MentorshipMatchRepository,
	runRepo repository.RunRecordRepository,
	scheduleRepo repository.ScheduleConfigRepository,
	db *gorm.DB,
	notifier MatchNotifier,
	clock Clock,
	loc *time.Location,
	lookbackWeeks int,
) RunFlow {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if clock == nil {
		clock = UTCClock
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RunFlowImpl{
		eligibility:  eligibility,
		pairingRepo:  pairingRepo,
		weeklyRepo:   weeklyRepo,
		matchRepo:    matchRepo,
		runRepo:      runRepo,
		scheduleRepo: scheduleRepo,
		notifier:     notifier,
		db:           db,
		clock:        clock,
		loc:          loc,
		lookback:     time.Duration(lookbackWeeks) * 7 * 24 * time.Hour,
	}
}

// pendingNotification is a committed match that still needs delivery.
type pendingNotification struct {
	a, b   *models.User
	shared []string
	kind   models.RunKind
}

func (s *RunFlowImpl) RunMatching(ctx context.Context, program string, runType models.RunType, triggeredBy string) (*models.RunRecord, error) {
	kind, err := ParseProgram(program)
	if err != nil {
		return nil, NewBusinessError("UNKNOWN_PROGRAM", fmt.Sprintf("Unknown program %q", program), err)
	}
	if !runType.Valid() {
		return nil, NewBusinessError("INVALID_RUN_TYPE", fmt.Sprintf("Invalid run type %q", runType), ErrInvalidRunType)
	}

	now := s.clock()

	if err := s.sweepStale(ctx, kind, now); err != nil {
		return nil, err
	}

	if runType == models.RunTypeScheduled {
		if err := s.checkScheduleDue(ctx, kind, now); err != nil {
			return nil, err
		}
	}

	record := &models.RunRecord{
		RunKind:     kind,
		RunType:     runType,
		TriggeredBy: triggeredBy,
		StartedAt:   now,
		Status:      models.RunStatusInProgress,
	}
	if err := s.runRepo.Save(ctx, record); err != nil {
		if isDuplicateKey(err) {
			return nil, NewBusinessError("RUN_ALREADY_IN_PROGRESS", "A run of this kind is already in progress", ErrConcurrentRunConflict)
		}
		return nil, NewBusinessError("RUN_RECORD_FAILED", "Failed to record run start", fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	pending, runErr := s.execute(ctx, kind, now, record)

	if runErr != nil {
		finished := s.clock()
		errText := runErr.Error()
		if ferr := s.runRepo.Finalize(ctx, record.ID, models.RunStatusFailed, 0, &errText, finished); ferr != nil {
			log.Printf("finalize failed run %s: %v", record.UUID, ferr)
		}
		observeRun(string(kind), string(models.RunStatusFailed), 0, now, finished)
		record.Status = models.RunStatusFailed
		record.ErrorText = &errText
		record.FinishedAt = &finished
		return record, runErr
	}

	observeRun(string(kind), string(models.RunStatusCompleted), record.PairCount, now, *record.FinishedAt)

	// Delivery happens strictly after the transaction committed; a failed
	// notification never fails the run.
	s.deliver(ctx, pending)

	return record, nil
}

func (s *RunFlowImpl) ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	records, err := s.runRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, NewBusinessError("RUN_HISTORY_FAILED", "Failed to list run history", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return records, nil
}

// execute performs the kind-specific matching and commits its writes, the
// schedule advancement, and the record's completed status in a single
// transaction. On success the record carries its terminal state.
func (s *RunFlowImpl) execute(ctx context.Context, kind models.RunKind, now time.Time, record *models.RunRecord) ([]pendingNotification, error) {
	switch kind {
	case models.RunKindCoffeeChat:
		return s.executeCoffeeChat(ctx, now, record)
	case models.RunKindMentorship:
		return s.executeMentorship(ctx, now, record)
	default:
		return nil, ErrUnknownProgram
	}
}

// finalizeCompleted transitions the record to completed inside the match
// transaction, so the audit row and the matches land together or not at all.
func (s *RunFlowImpl) finalizeCompleted(txCtx context.Context, record *models.RunRecord, pairCount int) error {
	finished := s.clock()
	if err := s.runRepo.Finalize(txCtx, record.ID, models.RunStatusCompleted, pairCount, nil, finished); err != nil {
		return fmt.Errorf("finalize run record: %w", err)
	}
	record.Status = models.RunStatusCompleted
	record.PairCount = pairCount
	record.FinishedAt = &finished
	return nil
}

func (s *RunFlowImpl) executeCoffeeChat(ctx context.Context, now time.Time, record *models.RunRecord) ([]pendingNotification, error) {
	pool, err := s.eligibility.CoffeeChatPool(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(pool))
	profiles := make(map[int64]*models.User, len(pool))
	for _, u := range pool {
		ids = append(ids, u.ID)
		profiles[u.ID] = u
	}

	history, err := s.pairingRepo.HistoryForPool(ctx, ids)
	if err != nil {
		return nil, NewBusinessError("PAIRING_HISTORY_FAILED", "Failed to load pairing history", fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	// Matches older than the lookback window no longer count as recent;
	// those pairs compete as if they had never met.
	if s.lookback > 0 {
		for k, last := range history {
			if now.Sub(last) > s.lookback {
				delete(history, k)
			}
		}
	}

	cycleDate := utils.CycleMonday(now, s.loc)
	engine := NewPairingEngine(cycleDate.Unix())
	result := engine.BuildPairs(ids, history, now)

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		weekly := make([]*models.WeeklyMatch, 0, len(result.Pairs))
		for _, p := range result.Pairs {
			if err := s.pairingRepo.UpsertLastMatched(txCtx, p.A, p.B, now); err != nil {
				return fmt.Errorf("upsert pairing (%d,%d): %w", p.A, p.B, err)
			}
			weekly = append(weekly, &models.WeeklyMatch{
				CycleDate: cycleDate,
				UserA:     p.A,
				UserB:     p.B,
			})
		}
		if len(weekly) > 0 {
			if err := s.weeklyRepo.SaveBatch(txCtx, weekly); err != nil {
				return fmt.Errorf("save weekly matches: %w", err)
			}
		}
		if err := s.scheduleRepo.AdvanceLastRun(txCtx, now); err != nil {
			return err
		}
		return s.finalizeCompleted(txCtx, record, len(result.Pairs))
	})
	if err != nil {
		return nil, NewBusinessError("MATCH_COMMIT_FAILED", "Failed to commit coffee-chat matches", fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	pending := make([]pendingNotification, 0, len(result.Pairs))
	for _, p := range result.Pairs {
		pending = append(pending, pendingNotification{
			a:    profiles[p.A],
			b:    profiles[p.B],
			kind: models.RunKindCoffeeChat,
		})
	}
	return pending, nil
}

func (s *RunFlowImpl) executeMentorship(ctx context.Context, now time.Time, record *models.RunRecord) ([]pendingNotification, error) {
	pools, err := s.eligibility.MentorshipPools(ctx)
	if err != nil {
		return nil, err
	}

	result := MatchMentorship(pools.Mentors, pools.Mentees, pools.ActivePairs)

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		for _, a := range result.Assignments {
			if err := s.matchRepo.UpsertActive(txCtx, a.MentorID, a.MenteeID, now); err != nil {
				return fmt.Errorf("upsert mentorship match (%d,%d): %w", a.MentorID, a.MenteeID, err)
			}
		}
		if err := s.scheduleRepo.AdvanceLastRun(txCtx, now); err != nil {
			return err
		}
		return s.finalizeCompleted(txCtx, record, len(result.Assignments))
	})
	if err != nil {
		return nil, NewBusinessError("MATCH_COMMIT_FAILED", "Failed to commit mentorship matches", fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	pending := make([]pendingNotification, 0, len(result.Assignments))
	for _, a := range result.Assignments {
		pending = append(pending, pendingNotification{
			a:      pools.Profiles[a.MentorID],
			b:      pools.Profiles[a.MenteeID],
			shared: a.Shared,
			kind:   models.RunKindMentorship,
		})
	}
	return pending, nil
}

// sweepStale finalizes a crashed in-progress run as failed so it stops
// blocking new runs. A younger in-progress record is a live run and the
// caller gets a conflict.
func (s *RunFlowImpl) sweepStale(ctx context.Context, kind models.RunKind, now time.Time) error {
	inProgress, err := s.runRepo.InProgressByKind(ctx, kind)
	if err != nil {
		return NewBusinessError("RUN_RECORD_FAILED", "Failed to check for in-progress runs", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	if inProgress == nil {
		return nil
	}

	if now.Sub(inProgress.StartedAt) < utils.StaleRunTimeout {
		return NewBusinessError("RUN_ALREADY_IN_PROGRESS", "A run of this kind is already in progress", ErrConcurrentRunConflict)
	}

	errText := fmt.Sprintf("run exceeded stale timeout of %s", utils.StaleRunTimeout)
	if err := s.runRepo.Finalize(ctx, inProgress.ID, models.RunStatusFailed, 0, &errText, now); err != nil {
		return NewBusinessError("RUN_RECORD_FAILED", "Failed to finalize stale run", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	log.Printf("swept stale %s run %s started at %s", kind, inProgress.UUID, inProgress.StartedAt.Format(time.RFC3339))
	return nil
}

// checkScheduleDue enforces the configured schedule for scheduled runs:
// today must be an enabled day, the configured time of day must have
// passed, and no run of this kind may have completed today already. The
// once-per-day dedup is keyed on the audit trail, not on the shared
// last_run_at, so each program gets its own cycle window.
func (s *RunFlowImpl) checkScheduleDue(ctx context.Context, kind models.RunKind, now time.Time) error {
	cfg, err := s.scheduleRepo.Get(ctx)
	if err != nil {
		return NewBusinessError("SCHEDULE_READ_FAILED", "Failed to read schedule configuration", fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	local := now.In(s.loc)
	if !cfg.DayEnabled(local.Weekday()) {
		return NewBusinessError("SCHEDULE_NOT_DUE", "Today is not a configured schedule day", ErrScheduleNotDue)
	}

	hour, minute, err := cfg.ParseScheduleTime()
	if err != nil {
		return NewBusinessError("SCHEDULE_READ_FAILED", "Schedule time is malformed", fmt.Errorf("%w: %w", ErrInvalidScheduleTime, err))
	}
	due := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, s.loc)
	if local.Before(due) {
		return NewBusinessError("SCHEDULE_NOT_DUE", "Scheduled time of day has not been reached", ErrScheduleNotDue)
	}

	last, err := s.runRepo.LastCompletedByKind(ctx, kind)
	if err != nil {
		return NewBusinessError("RUN_RECORD_FAILED", "Failed to load run history", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	if last != nil {
		started := last.StartedAt.In(s.loc)
		if started.Year() == local.Year() && started.YearDay() == local.YearDay() {
			return NewBusinessError("SCHEDULE_NOT_DUE", "A run of this kind already happened today", ErrScheduleNotDue)
		}
	}

	return nil
}

func (s *RunFlowImpl) deliver(ctx context.Context, pending []pendingNotification) {
	for _, p := range pending {
		if p.a == nil || p.b == nil {
			continue
		}
		var err error
		switch p.kind {
		case models.RunKindMentorship:
			err = s.notifier.NotifyMentorshipMatch(ctx, p.a, p.b, p.shared)
		default:
			err = s.notifier.NotifyCoffeePair(ctx, p.a, p.b)
		}
		if err != nil {
			notifyFailuresTotal.WithLabelValues(string(p.kind)).Inc()
			log.Printf("notify %s match (%d,%d): %v", p.kind, p.a.ID, p.b.ID, err)
		}
	}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "duplicate key value")
}

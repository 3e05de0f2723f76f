// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	businessflow "github.com/convivio/convivio/business_flow"
	"github.com/convivio/convivio/models"
	"github.com/convivio/convivio/repository"
	testingutil "github.com/convivio/convivio/testing"
	"github.com/convivio/convivio/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type flowHarness struct {
	runFlow      businessflow.RunFlow
	scheduleFlow businessflow.ScheduleFlow
	pairingRepo  repository.PairingRepository
	weeklyRepo   repository.WeeklyMatchRepository
	matchRepo    repository.MentorshipMatchRepository
	runRepo      repository.RunRecordRepository
	scheduleRepo repository.ScheduleConfigRepository
	now          time.Time
}

func newFlowHarness(db *gorm.DB, now time.Time) *flowHarness {
	userRepo := repository.NewUserRepository(db)
	pairingRepo := repository.NewPairingRepository(db)
	weeklyRepo := repository.NewWeeklyMatchRepository(db)
	mentorRepo := repository.NewMentorRepository(db)
	menteeRepo := repository.NewMenteeRepository(db)
	matchRepo := repository.NewMentorshipMatchRepository(db)
	runRepo := repository.NewRunRecordRepository(db)
	scheduleRepo := repository.NewScheduleConfigRepository(db)

	clock := func() time.Time { return now }
	eligibility := businessflow.NewEligibilityFlow(userRepo, mentorRepo, menteeRepo, matchRepo)
	runFlow := businessflow.NewRunFlow(
		eligibility, pairingRepo, weeklyRepo, matchRepo, runRepo, scheduleRepo,
		db, businessflow.NopNotifier{}, clock, time.UTC, 4,
	)
	scheduleFlow := businessflow.NewScheduleFlow(
		scheduleRepo, userRepo, mentorRepo, menteeRepo, matchRepo, weeklyRepo, runRepo,
		clock, time.UTC,
	)

	return &flowHarness{
		runFlow:      runFlow,
		scheduleFlow: scheduleFlow,
		pairingRepo:  pairingRepo,
		weeklyRepo:   weeklyRepo,
		matchRepo:    matchRepo,
		runRepo:      runRepo,
		scheduleRepo: scheduleRepo,
		now:          now,
	}
}

func TestCoffeeChatManualRun(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) // a Wednesday

		for id := int64(1); id <= 4; id++ {
			_, err := fixtures.CreateTestUser(id)
			require.NoError(t, err)
		}

		h := newFlowHarness(testDB.DB, now)

		record, err := h.runFlow.RunMatching(ctx, "coffee-chat", models.RunTypeManual, "admin@test")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, models.RunStatusCompleted, record.Status)
		assert.Equal(t, 2, record.PairCount)
		assert.Equal(t, "admin@test", record.TriggeredBy)
		require.NotNil(t, record.FinishedAt)

		// Every produced pair's last_matched_at equals the run timestamp
		history, err := h.pairingRepo.HistoryForPool(ctx, []int64{1, 2, 3, 4})
		require.NoError(t, err)
		require.Len(t, history, 2)
		for key, last := range history {
			assert.Less(t, key.A, key.B)
			assert.WithinDuration(t, now, last, time.Second)
		}

		// Weekly matches are keyed by the Monday of the run's week
		cycle := utils.CycleMonday(now, time.UTC)
		weekly, err := h.weeklyRepo.ListByCycleDate(ctx, cycle)
		require.NoError(t, err)
		assert.Len(t, weekly, 2)

		// The run advanced the schedule state
		cfg, err := h.scheduleRepo.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg.LastRunAt)
		assert.WithinDuration(t, now, *cfg.LastRunAt, time.Second)

		return nil
	})
	require.NoError(t, err)
}

func TestCoffeeChatRunAvoidsRecentPairs(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

		for id := int64(1); id <= 4; id++ {
			_, err := fixtures.CreateTestUser(id)
			require.NoError(t, err)
		}
		_, err := fixtures.CreateTestPairing(1, 2, now.Add(-time.Hour))
		require.NoError(t, err)
		_, err = fixtures.CreateTestPairing(3, 4, now.Add(-time.Hour))
		require.NoError(t, err)

		h := newFlowHarness(testDB.DB, now)

		record, err := h.runFlow.RunMatching(ctx, "coffee-chat", models.RunTypeManual, "admin@test")
		require.NoError(t, err)
		assert.Equal(t, 2, record.PairCount)

		// The just-matched pairs must be the complementary partition
		cycle := utils.CycleMonday(now, time.UTC)
		weekly, err := h.weeklyRepo.ListByCycleDate(ctx, cycle)
		require.NoError(t, err)
		for _, w := range weekly {
			repeated := (w.UserA == 1 && w.UserB == 2) || (w.UserA == 3 && w.UserB == 4)
			assert.False(t, repeated, "recently matched pair (%d,%d) was repeated", w.UserA, w.UserB)
		}

		return nil
	})
	require.NoError(t, err)
}

func TestRunConflictCreatesNoSecondRecord(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

		// A live in-progress run
		live := &models.RunRecord{
			RunKind:     models.RunKindCoffeeChat,
			RunType:     models.RunTypeManual,
			TriggeredBy: "first",
			StartedAt:   now.Add(-time.Minute),
			Status:      models.RunStatusInProgress,
		}
		require.NoError(t, testDB.DB.Create(live).Error)

		h := newFlowHarness(testDB.DB, now)

		_, err := h.runFlow.RunMatching(ctx, "coffee-chat", models.RunTypeManual, "second")
		require.Error(t, err)
		assert.True(t, businessflow.IsConcurrentRunConflict(err))

		var count int64
		require.NoError(t, testDB.DB.Model(&models.RunRecord{}).Count(&count).Error)
		assert.Equal(t, int64(1), count, "the conflicting call must not create a second record")

		return nil
	})
	require.NoError(t, err)
}

func TestStaleInProgressRunIsSwept(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

		for id := int64(1); id <= 2; id++ {
			_, err := fixtures.CreateTestUser(id)
			require.NoError(t, err)
		}

		// An in-progress record older than the stale timeout: a crashed run
		stale := &models.RunRecord{
			RunKind:     models.RunKindCoffeeChat,
			RunType:     models.RunTypeScheduled,
			TriggeredBy: "scheduler",
			StartedAt:   now.Add(-utils.StaleRunTimeout - time.Minute),
			Status:      models.RunStatusInProgress,
		}
		require.NoError(t, testDB.DB.Create(stale).Error)

		h := newFlowHarness(testDB.DB, now)

		record, err := h.runFlow.RunMatching(ctx, "coffee-chat", models.RunTypeManual, "admin@test")
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCompleted, record.Status)

		// The stale record was finalized as failed
		var swept models.RunRecord
		require.NoError(t, testDB.DB.First(&swept, stale.ID).Error)
		assert.Equal(t, models.RunStatusFailed, swept.Status)
		require.NotNil(t, swept.ErrorText)
		assert.Contains(t, *swept.ErrorText, "stale timeout")

		return nil
	})
	require.NoError(t, err)
}

func TestScheduledRunDueCheck(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) // Wednesday 10:00

		for id := int64(1); id <= 2; id++ {
			_, err := fixtures.CreateTestUser(id)
			require.NoError(t, err)
		}

		t.Run("NoDaysConfigured", func(t *testing.T) {
			h := newFlowHarness(testDB.DB, now)
			_, err := h.runFlow.RunMatching(ctx, "coffee-chat", models.RunTypeScheduled, "scheduler")
			require.Error(t, err)
			assert.True(t, businessflow.IsScheduleNotDue(err))
		})

		h := newFlowHarness(testDB.DB, now)
		_, err := h.scheduleFlow.UpdateScheduleDays(ctx, []string{"wednesday"})
		require.NoError(t, err)

		t.Run("BeforeScheduledTime", func(t *testing.T) {
			early := time.Date(2026, 3, 4, 8, 59, 0, 0, time.UTC)
			h := newFlowHarness(testDB.DB, early)
			_, err := h.runFlow.RunMatching(ctx, "coffee-chat", models.RunTypeScheduled, "scheduler")
			require.Error(t, err)
			assert.True(t, businessflow.IsScheduleNotDue(err))
		})

		t.Run("DueAndRuns", func(t *testing.T) {
			h := newFlowHarness(testDB.DB, now)
			record, err := h.runFlow.RunMatching(ctx, "coffee-chat", models.RunTypeScheduled, "scheduler")
			require.NoError(t, err)
			assert.Equal(t, models.RunStatusCompleted, record.Status)
		})

		t.Run("SecondRunSameDayNotDue", func(t *testing.T) {
			later := now.Add(2 * time.Hour)
			h := newFlowHarness(testDB.DB, later)
			_, err := h.runFlow.RunMatching(ctx, "coffee-chat", models.RunTypeScheduled, "scheduler")
			require.Error(t, err)
			assert.True(t, businessflow.IsScheduleNotDue(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestMentorshipRunCapacityAndIdempotency(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

		_, err := fixtures.CreateTestMentor(100, []string{"optics", "lasers"}, 1)
		require.NoError(t, err)
		_, err = fixtures.CreateTestMentee(1, []string{"optics"}, now.Add(-48*time.Hour))
		require.NoError(t, err)
		_, err = fixtures.CreateTestMentee(2, []string{"biology"}, now.Add(-24*time.Hour))
		require.NoError(t, err)

		h := newFlowHarness(testDB.DB, now)

		record, err := h.runFlow.RunMatching(ctx, "mentorship", models.RunTypeManual, "admin@test")
		require.NoError(t, err)
		assert.Equal(t, 1, record.PairCount)

		active, err := h.matchRepo.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, int64(100), active[0].MentorID)
		assert.Equal(t, int64(1), active[0].MenteeID)

		// An immediate second run must not duplicate the assignment or
		// exceed the mentor's capacity
		record, err = h.runFlow.RunMatching(ctx, "mentorship", models.RunTypeManual, "admin@test")
		require.NoError(t, err)
		assert.Equal(t, 0, record.PairCount)

		counts, err := h.matchRepo.ActiveCountByMentor(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, counts[100])

		return nil
	})
	require.NoError(t, err)
}

func TestScheduleFlowValidation(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
		h := newFlowHarness(testDB.DB, now)

		t.Run("RejectsUnknownDay", func(t *testing.T) {
			_, err := h.scheduleFlow.UpdateScheduleDays(ctx, []string{"wednesday", "someday"})
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidScheduleDay(err))
		})

		t.Run("RejectsMalformedTime", func(t *testing.T) {
			_, err := h.scheduleFlow.UpdateScheduleTime(ctx, "25:99")
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidScheduleTime(err))
		})

		t.Run("UpdatesAndReads", func(t *testing.T) {
			cfg, err := h.scheduleFlow.UpdateScheduleDays(ctx, []string{"monday", "thursday"})
			require.NoError(t, err)
			assert.Equal(t, []string{"monday", "thursday"}, []string(cfg.ScheduleDays))

			cfg, err = h.scheduleFlow.UpdateScheduleTime(ctx, "08:30")
			require.NoError(t, err)
			assert.Equal(t, "08:30", cfg.ScheduleTime)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestScheduledRunsAreIndependentPerProgram(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) // Wednesday 10:00

		for id := int64(1); id <= 2; id++ {
			_, err := fixtures.CreateTestUser(id)
			require.NoError(t, err)
		}

		h := newFlowHarness(testDB.DB, now)
		_, err := h.scheduleFlow.UpdateScheduleDays(ctx, []string{"wednesday"})
		require.NoError(t, err)

		record, err := h.runFlow.RunMatching(ctx, "coffee-chat", models.RunTypeScheduled, "scheduler")
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCompleted, record.Status)

		// The coffee-chat run must not consume the mentorship window: the
		// scheduler triggers both programs in the same tick
		record, err = h.runFlow.RunMatching(ctx, "mentorship", models.RunTypeScheduled, "scheduler")
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCompleted, record.Status)
		assert.Equal(t, 0, record.PairCount)

		// Each program is now deduped for the rest of the day independently
		later := newFlowHarness(testDB.DB, now.Add(time.Hour))
		_, err = later.runFlow.RunMatching(ctx, "coffee-chat", models.RunTypeScheduled, "scheduler")
		require.Error(t, err)
		assert.True(t, businessflow.IsScheduleNotDue(err))

		_, err = later.runFlow.RunMatching(ctx, "mentorship", models.RunTypeScheduled, "scheduler")
		require.Error(t, err)
		assert.True(t, businessflow.IsScheduleNotDue(err))

		return nil
	})
	require.NoError(t, err)
}

// completionFailingRunRepo simulates losing the connection at the moment the
// run's completed status is written.
type completionFailingRunRepo struct {
	repository.RunRecordRepository
}

func (r *completionFailingRunRepo) Finalize(ctx context.Context, id uint, status models.RunStatus, pairCount int, errorText *string, finishedAt time.Time) error {
	if status == models.RunStatusCompleted {
		return errors.New("connection reset by peer")
	}
	return r.RunRecordRepository.Finalize(ctx, id, status, pairCount, errorText, finishedAt)
}

func TestRunRecordCommitsAtomicallyWithMatches(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

		for id := int64(1); id <= 4; id++ {
			_, err := fixtures.CreateTestUser(id)
			require.NoError(t, err)
		}

		userRepo := repository.NewUserRepository(testDB.DB)
		pairingRepo := repository.NewPairingRepository(testDB.DB)
		weeklyRepo := repository.NewWeeklyMatchRepository(testDB.DB)
		mentorRepo := repository.NewMentorRepository(testDB.DB)
		menteeRepo := repository.NewMenteeRepository(testDB.DB)
		matchRepo := repository.NewMentorshipMatchRepository(testDB.DB)
		runRepo := &completionFailingRunRepo{repository.NewRunRecordRepository(testDB.DB)}
		scheduleRepo := repository.NewScheduleConfigRepository(testDB.DB)

		eligibility := businessflow.NewEligibilityFlow(userRepo, mentorRepo, menteeRepo, matchRepo)
		runFlow := businessflow.NewRunFlow(
			eligibility, pairingRepo, weeklyRepo, matchRepo, runRepo, scheduleRepo,
			testDB.DB, businessflow.NopNotifier{}, func() time.Time { return now }, time.UTC, 4,
		)

		record, err := runFlow.RunMatching(ctx, "coffee-chat", models.RunTypeManual, "admin@test")
		require.Error(t, err)
		assert.True(t, businessflow.IsPersistence(err))
		require.NotNil(t, record)
		assert.Equal(t, models.RunStatusFailed, record.Status)

		// The completed status could not be written, so the match writes
		// must have rolled back with it: no pairings, no weekly matches,
		// no schedule advancement
		count, err := pairingRepo.Count(ctx, models.PairingFilter{})
		require.NoError(t, err)
		assert.Zero(t, count)

		count, err = weeklyRepo.Count(ctx, models.WeeklyMatchFilter{})
		require.NoError(t, err)
		assert.Zero(t, count)

		cfg, err := scheduleRepo.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, cfg.LastRunAt)

		// The audit record agrees: failed, zero pairs
		var persisted models.RunRecord
		require.NoError(t, testDB.DB.First(&persisted, record.ID).Error)
		assert.Equal(t, models.RunStatusFailed, persisted.Status)
		assert.Zero(t, persisted.PairCount)

		return nil
	})
	require.NoError(t, err)
}

func TestCoffeeChatRunWithThinPool(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
		h := newFlowHarness(testDB.DB, now)

		// No eligible participants: the run completes with zero pairs
		record, err := h.runFlow.RunMatching(ctx, "coffee-chat", models.RunTypeManual, "admin@test")
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCompleted, record.Status)
		assert.Equal(t, 0, record.PairCount)

		// A single participant is carried over unmatched, still not a failure
		_, err = fixtures.CreateTestUser(1)
		require.NoError(t, err)

		record, err = h.runFlow.RunMatching(ctx, "coffee-chat", models.RunTypeManual, "admin@test")
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCompleted, record.Status)
		assert.Equal(t, 0, record.PairCount)

		history, err := h.pairingRepo.HistoryForPool(ctx, []int64{1})
		require.NoError(t, err)
		assert.Empty(t, history)

		return nil
	})
	require.NoError(t, err)
}

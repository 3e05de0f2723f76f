package tests

import (
	"testing"
	"time"

	"github.com/convivio/convivio/models"
	"github.com/convivio/convivio/repository"
	testingutil "github.com/convivio/convivio/testing"
	"github.com/convivio/convivio/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairingRepositoryUpsert(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		repo := repository.NewPairingRepository(testDB.DB)

		first := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
		require.NoError(t, repo.UpsertLastMatched(ctx, 1, 2, first))

		row, err := repo.ByPair(ctx, 1, 2)
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.WithinDuration(t, first, row.LastMatchedAt, time.Second)

		// A second upsert for the same pair updates the existing row
		second := first.Add(7 * 24 * time.Hour)
		require.NoError(t, repo.UpsertLastMatched(ctx, 1, 2, second))

		row, err = repo.ByPair(ctx, 1, 2)
		require.NoError(t, err)
		assert.WithinDuration(t, second, row.LastMatchedAt, time.Second)

		count, err := repo.Count(ctx, models.PairingFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		return nil
	})
	require.NoError(t, err)
}

func TestPairingRepositoryHistoryForPool(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		repo := repository.NewPairingRepository(testDB.DB)

		at := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
		require.NoError(t, repo.UpsertLastMatched(ctx, 1, 2, at))
		require.NoError(t, repo.UpsertLastMatched(ctx, 3, 4, at))
		require.NoError(t, repo.UpsertLastMatched(ctx, 1, 9, at))

		// Pairs with a member outside the pool are excluded
		history, err := repo.HistoryForPool(ctx, []int64{1, 2, 3, 4})
		require.NoError(t, err)
		assert.Len(t, history, 2)
		assert.Contains(t, history, repository.PairKey{A: 1, B: 2})
		assert.Contains(t, history, repository.PairKey{A: 3, B: 4})

		history, err = repo.HistoryForPool(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, history)

		return nil
	})
	require.NoError(t, err)
}

func TestMentorshipMatchRepositoryReactivation(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		repo := repository.NewMentorshipMatchRepository(testDB.DB)

		matchedAt := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
		require.NoError(t, repo.UpsertActive(ctx, 100, 1, matchedAt))

		require.NoError(t, repo.Deactivate(ctx, 100, 1, matchedAt.Add(time.Hour)))
		row, err := repo.ByPair(ctx, 100, 1)
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.False(t, *row.Active)
		require.NotNil(t, row.DeactivatedAt)

		// Reactivating the same pair reuses the row and clears deactivated_at
		rematchedAt := matchedAt.Add(30 * 24 * time.Hour)
		require.NoError(t, repo.UpsertActive(ctx, 100, 1, rematchedAt))

		row, err = repo.ByPair(ctx, 100, 1)
		require.NoError(t, err)
		assert.True(t, *row.Active)
		assert.Nil(t, row.DeactivatedAt)
		assert.WithinDuration(t, rematchedAt, row.MatchedAt, time.Second)

		count, err := repo.Count(ctx, models.MentorshipMatchFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		return nil
	})
	require.NoError(t, err)
}

func TestRunRecordRepositoryFinalizeGuard(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		repo := repository.NewRunRecordRepository(testDB.DB)

		record := &models.RunRecord{
			RunKind:     models.RunKindCoffeeChat,
			RunType:     models.RunTypeManual,
			TriggeredBy: "admin@test",
			StartedAt:   utils.UTCNow(),
			Status:      models.RunStatusInProgress,
		}
		require.NoError(t, repo.Save(ctx, record))
		assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", record.UUID.String())

		finishedAt := utils.UTCNow()
		require.NoError(t, repo.Finalize(ctx, record.ID, models.RunStatusCompleted, 3, nil, finishedAt))

		reloaded, err := repo.ByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCompleted, reloaded.Status)
		assert.Equal(t, 3, reloaded.PairCount)
		require.NotNil(t, reloaded.FinishedAt)

		last, err := repo.LastCompletedByKind(ctx, models.RunKindCoffeeChat)
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.Equal(t, record.ID, last.ID)

		// No mentorship run has completed
		last, err = repo.LastCompletedByKind(ctx, models.RunKindMentorship)
		require.NoError(t, err)
		assert.Nil(t, last)

		// Terminal records cannot be finalized again
		err = repo.Finalize(ctx, record.ID, models.RunStatusFailed, 0, nil, utils.UTCNow())
		assert.Error(t, err)

		// Non-terminal target status is rejected outright
		err = repo.Finalize(ctx, record.ID, models.RunStatusInProgress, 0, nil, utils.UTCNow())
		assert.Error(t, err)

		return nil
	})
	require.NoError(t, err)
}

func TestRunRecordRepositoryInProgressUnique(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		repo := repository.NewRunRecordRepository(testDB.DB)

		first := &models.RunRecord{
			RunKind:     models.RunKindCoffeeChat,
			RunType:     models.RunTypeScheduled,
			TriggeredBy: "scheduler",
			StartedAt:   utils.UTCNow(),
			Status:      models.RunStatusInProgress,
		}
		require.NoError(t, repo.Save(ctx, first))

		// The partial unique index rejects a second in-progress row per kind
		duplicate := &models.RunRecord{
			RunKind:     models.RunKindCoffeeChat,
			RunType:     models.RunTypeManual,
			TriggeredBy: "admin@test",
			StartedAt:   utils.UTCNow(),
			Status:      models.RunStatusInProgress,
		}
		assert.Error(t, repo.Save(ctx, duplicate))

		// A different kind is unaffected
		other := &models.RunRecord{
			RunKind:     models.RunKindMentorship,
			RunType:     models.RunTypeManual,
			TriggeredBy: "admin@test",
			StartedAt:   utils.UTCNow(),
			Status:      models.RunStatusInProgress,
		}
		assert.NoError(t, repo.Save(ctx, other))

		found, err := repo.InProgressByKind(ctx, models.RunKindCoffeeChat)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, first.ID, found.ID)

		return nil
	})
	require.NoError(t, err)
}

func TestScheduleConfigRepositoryDefaults(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		repo := repository.NewScheduleConfigRepository(testDB.DB)

		// First read creates the default row
		cfg, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.ScheduleConfigID, cfg.ID)
		assert.Empty(t, cfg.ScheduleDays)
		assert.Equal(t, utils.DefaultScheduleTime, cfg.ScheduleTime)
		assert.Nil(t, cfg.LastRunAt)

		require.NoError(t, repo.SetScheduleDays(ctx, []string{"monday", "thursday"}))
		require.NoError(t, repo.SetScheduleTime(ctx, "14:30"))

		lastRun := utils.UTCNow()
		require.NoError(t, repo.AdvanceLastRun(ctx, lastRun))

		cfg, err = repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"monday", "thursday"}, []string(cfg.ScheduleDays))
		assert.Equal(t, "14:30", cfg.ScheduleTime)
		require.NotNil(t, cfg.LastRunAt)
		assert.WithinDuration(t, lastRun, *cfg.LastRunAt, time.Second)

		return nil
	})
	require.NoError(t, err)
}

package businessflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchMentorshipAffinityAndCapacity(t *testing.T) {
	now := time.Now().UTC()

	t.Run("OverlapRequired", func(t *testing.T) {
		mentors := []MentorCandidate{
			{UserID: 100, Tags: []string{"optics", "lasers"}, Capacity: 1},
		}
		mentees := []MenteeCandidate{
			{UserID: 1, Interests: []string{"optics"}, WaitingSince: now.Add(-time.Hour)},
			{UserID: 2, Interests: []string{"biology"}, WaitingSince: now},
		}

		result := MatchMentorship(mentors, mentees, nil)
		require.Len(t, result.Assignments, 1)
		assert.Equal(t, int64(100), result.Assignments[0].MentorID)
		assert.Equal(t, int64(1), result.Assignments[0].MenteeID)
		assert.Equal(t, []string{"optics"}, result.Assignments[0].Shared)
		assert.Equal(t, []int64{2}, result.UnmatchedMentees)
	})

	t.Run("CapacityNeverExceeded", func(t *testing.T) {
		mentors := []MentorCandidate{
			{UserID: 100, Tags: []string{"go"}, Capacity: 2},
		}
		mentees := []MenteeCandidate{
			{UserID: 1, Interests: []string{"go"}, WaitingSince: now.Add(-3 * time.Hour)},
			{UserID: 2, Interests: []string{"go"}, WaitingSince: now.Add(-2 * time.Hour)},
			{UserID: 3, Interests: []string{"go"}, WaitingSince: now.Add(-1 * time.Hour)},
		}

		result := MatchMentorship(mentors, mentees, nil)
		assert.Len(t, result.Assignments, 2)
		assert.Equal(t, []int64{3}, result.UnmatchedMentees)

		// Longest-waiting mentees got the slots
		assert.Equal(t, int64(1), result.Assignments[0].MenteeID)
		assert.Equal(t, int64(2), result.Assignments[1].MenteeID)
	})

	t.Run("ActiveCountReducesCapacity", func(t *testing.T) {
		mentors := []MentorCandidate{
			{UserID: 100, Tags: []string{"go"}, Capacity: 2, ActiveCount: 2},
		}
		mentees := []MenteeCandidate{
			{UserID: 1, Interests: []string{"go"}, WaitingSince: now},
		}

		result := MatchMentorship(mentors, mentees, nil)
		assert.Empty(t, result.Assignments)
		assert.Equal(t, []int64{1}, result.UnmatchedMentees)
	})
}

func TestMatchMentorshipPrefersHigherAffinity(t *testing.T) {
	now := time.Now().UTC()
	mentors := []MentorCandidate{
		{UserID: 100, Tags: []string{"optics"}, Capacity: 1},
		{UserID: 200, Tags: []string{"optics", "lasers"}, Capacity: 1},
	}
	mentees := []MenteeCandidate{
		{UserID: 1, Interests: []string{"optics", "lasers"}, WaitingSince: now},
	}

	result := MatchMentorship(mentors, mentees, nil)
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, int64(200), result.Assignments[0].MentorID)
	assert.Equal(t, 2, result.Assignments[0].Affinity)
	assert.Equal(t, []string{"lasers", "optics"}, result.Assignments[0].Shared)
}

func TestMatchMentorshipTieBreaksOnRemainingCapacity(t *testing.T) {
	now := time.Now().UTC()
	mentors := []MentorCandidate{
		{UserID: 100, Tags: []string{"go"}, Capacity: 5},
		{UserID: 200, Tags: []string{"go"}, Capacity: 1},
	}
	mentees := []MenteeCandidate{
		{UserID: 1, Interests: []string{"go"}, WaitingSince: now},
	}

	// Equal affinity: the nearly-full mentor wins to spread load
	result := MatchMentorship(mentors, mentees, nil)
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, int64(200), result.Assignments[0].MentorID)
}

func TestMatchMentorshipSkipsActivePairs(t *testing.T) {
	now := time.Now().UTC()
	mentors := []MentorCandidate{
		{UserID: 100, Tags: []string{"optics"}, Capacity: 1},
	}
	mentees := []MenteeCandidate{
		{UserID: 1, Interests: []string{"optics"}, WaitingSince: now},
	}
	active := map[MentorshipPairKey]struct{}{
		{MentorID: 100, MenteeID: 1}: {},
	}

	result := MatchMentorship(mentors, mentees, active)
	assert.Empty(t, result.Assignments, "an already-active pair must not be duplicated")
	assert.Equal(t, []int64{1}, result.UnmatchedMentees)
}

func TestMatchMentorshipDuplicateInterestsCountOnce(t *testing.T) {
	now := time.Now().UTC()
	mentors := []MentorCandidate{
		{UserID: 100, Tags: []string{"go", "db"}, Capacity: 1},
		{UserID: 200, Tags: []string{"go"}, Capacity: 1},
	}
	mentees := []MenteeCandidate{
		{UserID: 1, Interests: []string{"go", "go", "go"}, WaitingSince: now},
	}

	result := MatchMentorship(mentors, mentees, nil)
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, 1, result.Assignments[0].Affinity)
	// Equal affinity, equal remaining: the lower mentor id wins
	assert.Equal(t, int64(100), result.Assignments[0].MentorID)
}

package businessflow

import (
	"math/rand"
	"testing"
	"time"

	"github.com/convivio/convivio/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairKey(a, b int64) repository.PairKey {
	if a > b {
		a, b = b, a
	}
	return repository.PairKey{A: a, B: b}
}

func TestBuildPairsSmallPools(t *testing.T) {
	engine := NewPairingEngine(1)
	now := time.Now().UTC()

	t.Run("EmptyPool", func(t *testing.T) {
		result := engine.BuildPairs(nil, nil, now)
		assert.Empty(t, result.Pairs)
		assert.Empty(t, result.Leftover)
	})

	t.Run("SingleUser", func(t *testing.T) {
		result := engine.BuildPairs([]int64{42}, nil, now)
		assert.Empty(t, result.Pairs)
		assert.Equal(t, []int64{42}, result.Leftover)
	})

	t.Run("TwoUsers", func(t *testing.T) {
		result := engine.BuildPairs([]int64{7, 3}, nil, now)
		require.Len(t, result.Pairs, 1)
		assert.Equal(t, Pair{A: 3, B: 7}, result.Pairs[0])
		assert.Empty(t, result.Leftover)
	})
}

func TestBuildPairsCanonicalAndDisjoint(t *testing.T) {
	engine := NewPairingEngine(99)
	now := time.Now().UTC()
	pool := []int64{10, 3, 55, 21, 8, 14, 90, 2}

	result := engine.BuildPairs(pool, nil, now)
	require.Len(t, result.Pairs, len(pool)/2)
	assert.Empty(t, result.Leftover)

	seen := make(map[int64]bool)
	for _, p := range result.Pairs {
		assert.Less(t, p.A, p.B, "pair must be in canonical order")
		assert.False(t, seen[p.A], "user %d appears in more than one pair", p.A)
		assert.False(t, seen[p.B], "user %d appears in more than one pair", p.B)
		seen[p.A], seen[p.B] = true, true
	}
	assert.Len(t, seen, len(pool))
}

func TestBuildPairsOddPoolLeavesOneUnmatched(t *testing.T) {
	engine := NewPairingEngine(7)
	now := time.Now().UTC()
	pool := []int64{1, 2, 3, 4, 5}

	result := engine.BuildPairs(pool, nil, now)
	assert.Len(t, result.Pairs, 2)
	require.Len(t, result.Leftover, 1)

	matched := make(map[int64]bool)
	for _, p := range result.Pairs {
		matched[p.A], matched[p.B] = true, true
	}
	assert.False(t, matched[result.Leftover[0]], "leftover must not appear in any pair")
}

func TestBuildPairsDeterministicForSeed(t *testing.T) {
	now := time.Now().UTC()
	pool := []int64{5, 9, 1, 12, 33, 7}
	history := map[repository.PairKey]time.Time{
		pairKey(5, 9): now.Add(-48 * time.Hour),
	}

	first := NewPairingEngine(123).BuildPairs(pool, history, now)
	second := NewPairingEngine(123).BuildPairs(pool, history, now)
	assert.Equal(t, first, second)

	// Pool load order must not matter
	shuffled := []int64{33, 1, 12, 5, 7, 9}
	third := NewPairingEngine(123).BuildPairs(shuffled, history, now)
	assert.Equal(t, first, third)
}

func TestBuildPairsPrefersNeverMatched(t *testing.T) {
	now := time.Now().UTC()
	pool := []int64{1, 2, 3, 4}

	// 1-2 and 3-4 matched recently; the only never-matched partitions are
	// {(1,3),(2,4)} and {(1,4),(2,3)}.
	history := map[repository.PairKey]time.Time{
		pairKey(1, 2): now.Add(-time.Hour),
		pairKey(3, 4): now.Add(-time.Hour),
	}

	for seed := int64(0); seed < 20; seed++ {
		result := NewPairingEngine(seed).BuildPairs(pool, history, now)
		require.Len(t, result.Pairs, 2, "seed %d", seed)
		for _, p := range result.Pairs {
			_, repeated := history[pairKey(p.A, p.B)]
			assert.False(t, repeated, "seed %d repeated recent pair (%d,%d)", seed, p.A, p.B)
		}
	}
}

func TestBuildPairsPrefersStalerPartner(t *testing.T) {
	now := time.Now().UTC()

	// Everyone has met everyone; 1-3 and 2-4 are the stalest options, so the
	// staleness-greedy partition is {(1,3),(2,4)} regardless of seed.
	history := map[repository.PairKey]time.Time{
		pairKey(1, 2): now.Add(-1 * 24 * time.Hour),
		pairKey(1, 3): now.Add(-60 * 24 * time.Hour),
		pairKey(1, 4): now.Add(-2 * 24 * time.Hour),
		pairKey(2, 3): now.Add(-3 * 24 * time.Hour),
		pairKey(2, 4): now.Add(-50 * 24 * time.Hour),
		pairKey(3, 4): now.Add(-1 * 24 * time.Hour),
	}

	for seed := int64(0); seed < 10; seed++ {
		result := NewPairingEngine(seed).BuildPairs([]int64{1, 2, 3, 4}, history, now)
		require.Len(t, result.Pairs, 2, "seed %d", seed)
		assert.ElementsMatch(t, []Pair{{A: 1, B: 3}, {A: 2, B: 4}}, result.Pairs, "seed %d", seed)
	}
}

func TestBuildPairsBeatsRandomPairingOnStaleness(t *testing.T) {
	now := time.Now().UTC()
	pool := make([]int64, 12)
	for i := range pool {
		pool[i] = int64(i + 1)
	}

	avgStaleness := func(pairs []Pair, history map[repository.PairKey]time.Time) time.Duration {
		var total time.Duration
		for _, p := range pairs {
			total += now.Sub(history[pairKey(p.A, p.B)])
		}
		return total / time.Duration(len(pairs))
	}

	rng := rand.New(rand.NewSource(42))
	var engineTotal, randomTotal time.Duration
	for trial := 0; trial < 50; trial++ {
		// Every pair has met at some point in the last 100 days
		history := make(map[repository.PairKey]time.Time)
		for i := 0; i < len(pool); i++ {
			for j := i + 1; j < len(pool); j++ {
				age := time.Duration(rng.Intn(100)+1) * 24 * time.Hour
				history[pairKey(pool[i], pool[j])] = now.Add(-age)
			}
		}

		result := NewPairingEngine(int64(trial)).BuildPairs(pool, history, now)
		require.Len(t, result.Pairs, len(pool)/2)
		engineTotal += avgStaleness(result.Pairs, history)

		// Uniformly random pairing: shuffle and pair adjacent users
		shuffled := append([]int64(nil), pool...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		var random []Pair
		for i := 0; i+1 < len(shuffled); i += 2 {
			a, b := shuffled[i], shuffled[i+1]
			if a > b {
				a, b = b, a
			}
			random = append(random, Pair{A: a, B: b})
		}
		randomTotal += avgStaleness(random, history)
	}

	assert.GreaterOrEqual(t, engineTotal, randomTotal,
		"staleness-greedy pairing must not be worse than uniform random pairing")
}

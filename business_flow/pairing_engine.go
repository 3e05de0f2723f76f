package businessflow

import (
	"hash/fnv"
	"math/rand"
	"sort"
	"time"

	"github.com/convivio/convivio/repository"
	"github.com/convivio/convivio/utils"
)

// Pair is one produced coffee-chat pair in canonical order (A < B).
type Pair struct {
	A int64
	B int64
}

// PairingResult is the outcome of one pairing computation. Pairs are
// disjoint; Leftover holds the at most one participant that could not be
// paired this cycle and is carried over unmatched to the next one.
type PairingResult struct {
	Pairs    []Pair
	Leftover []int64
}

// PairingEngine builds disjoint pairs from an eligible pool, preferring
// partners that have never met or met longest ago. The engine is pure:
// given the same seed, pool and history it always produces the same pairs.
type PairingEngine struct {
	seed int64
}

// NewPairingEngine creates a pairing engine with the given seed.
func NewPairingEngine(seed int64) *PairingEngine {
	return &PairingEngine{seed: seed}
}

// BuildPairs computes this cycle's pairs. history maps canonical pairs to
// their last-matched time; pairs absent from the map have never met and are
// always preferred over any prior match. A pool of fewer than two users
// yields zero pairs.
func (e *PairingEngine) BuildPairs(pool []int64, history map[repository.PairKey]time.Time, now time.Time) PairingResult {
	if len(pool) < 2 {
		leftover := append([]int64(nil), pool...)
		return PairingResult{Leftover: leftover}
	}

	// Sort then shuffle: iteration order depends only on the seed, not on
	// the order the pool was loaded in.
	order := append([]int64(nil), pool...)
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	rng := rand.New(rand.NewSource(e.seed))
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	assigned := make(map[int64]bool, len(order))
	var pairs []Pair

	for i, a := range order {
		if assigned[a] {
			continue
		}

		var (
			chosen      int64
			found       bool
			bestNever   bool
			bestStale   time.Duration
			bestTieHash uint64
		)
		for _, b := range order[i+1:] {
			if assigned[b] {
				continue
			}

			ka, kb := utils.CanonicalPair(a, b)
			last, matched := history[repository.PairKey{A: ka, B: kb}]
			never := !matched
			var stale time.Duration
			if matched {
				stale = now.Sub(last)
			}
			tie := e.pairTieHash(ka, kb)

			if !found || betterCandidate(never, stale, tie, bestNever, bestStale, bestTieHash) {
				chosen, found = b, true
				bestNever, bestStale, bestTieHash = never, stale, tie
			}
		}

		if found {
			assigned[a], assigned[chosen] = true, true
			ka, kb := utils.CanonicalPair(a, chosen)
			pairs = append(pairs, Pair{A: ka, B: kb})
		}
	}

	var leftover []int64
	for _, id := range order {
		if !assigned[id] {
			leftover = append(leftover, id)
		}
	}
	sort.Slice(leftover, func(i, j int) bool { return leftover[i] < leftover[j] })

	return PairingResult{Pairs: pairs, Leftover: leftover}
}

// betterCandidate reports whether the candidate (never, stale, tie) beats the
// current best. Never-matched always wins over any prior match; otherwise
// larger staleness wins; exact ties fall back to the pair hash so the result
// is reproducible.
func betterCandidate(never bool, stale time.Duration, tie uint64, bestNever bool, bestStale time.Duration, bestTie uint64) bool {
	if never != bestNever {
		return never
	}
	if never {
		return tie > bestTie
	}
	if stale != bestStale {
		return stale > bestStale
	}
	return tie > bestTie
}

// pairTieHash is a deterministic per-pair tiebreaker mixed with the seed.
func (e *PairingEngine) pairTieHash(a, b int64) uint64 {
	h := fnv.New64a()
	var buf [24]byte
	putInt64(buf[0:8], e.seed)
	putInt64(buf[8:16], a)
	putInt64(buf[16:24], b)
	h.Write(buf[:])
	return h.Sum64()
}

func putInt64(dst []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		dst[i] = byte(u >> (8 * i))
	}
}

package businessflow

import (
	"sort"
	"time"
)

// MentorCandidate is a mentor as seen by the matcher: topic tags, configured
// monthly capacity and the number of currently active mentees.
type MentorCandidate struct {
	UserID      int64
	Tags        []string
	Capacity    int
	ActiveCount int
}

// Remaining is the number of additional mentees this mentor can take.
func (m MentorCandidate) Remaining() int {
	r := m.Capacity - m.ActiveCount
	if r < 0 {
		return 0
	}
	return r
}

// MenteeCandidate is a mentee waiting for a mentor. WaitingSince orders the
// queue: longest-waiting mentees are assigned first.
type MenteeCandidate struct {
	UserID       int64
	Interests    []string
	WaitingSince time.Time
}

// Assignment is one proposed mentor-mentee match with its affinity score.
type Assignment struct {
	MentorID int64
	MenteeID int64
	Affinity int
	Shared   []string
}

// MentorshipResult is the outcome of one matching computation. Mentees with
// no mentor of positive affinity and free capacity stay in UnmatchedMentees;
// that is a valid outcome, not an error.
type MentorshipResult struct {
	Assignments      []Assignment
	UnmatchedMentees []int64
}

// MatchMentorship greedily assigns each mentee, in waiting order, to the
// mentor with the highest interest/tag overlap among those with remaining
// capacity. Ties prefer the mentor with less remaining capacity (to spread
// load), then the lower mentor id. Pairs present in activePairs are already
// satisfied and are never re-scored or duplicated.
func MatchMentorship(mentors []MentorCandidate, mentees []MenteeCandidate, activePairs map[MentorshipPairKey]struct{}) MentorshipResult {
	remaining := make(map[int64]int, len(mentors))
	tagSets := make(map[int64]map[string]struct{}, len(mentors))
	for _, m := range mentors {
		remaining[m.UserID] = m.Remaining()
		set := make(map[string]struct{}, len(m.Tags))
		for _, t := range m.Tags {
			set[t] = struct{}{}
		}
		tagSets[m.UserID] = set
	}

	ordered := append([]MenteeCandidate(nil), mentees...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].WaitingSince.Equal(ordered[j].WaitingSince) {
			return ordered[i].WaitingSince.Before(ordered[j].WaitingSince)
		}
		return ordered[i].UserID < ordered[j].UserID
	})

	mentorOrder := append([]MentorCandidate(nil), mentors...)
	sort.Slice(mentorOrder, func(i, j int) bool { return mentorOrder[i].UserID < mentorOrder[j].UserID })

	var result MentorshipResult
	for _, mentee := range ordered {
		var (
			best      *MentorCandidate
			bestScore int
			bestShare []string
		)
		for i := range mentorOrder {
			mentor := &mentorOrder[i]
			if remaining[mentor.UserID] <= 0 {
				continue
			}
			if _, active := activePairs[MentorshipPairKey{MentorID: mentor.UserID, MenteeID: mentee.UserID}]; active {
				continue
			}

			shared := sharedTopics(tagSets[mentor.UserID], mentee.Interests)
			score := len(shared)
			if score == 0 {
				continue
			}

			if best == nil || score > bestScore ||
				(score == bestScore && remaining[mentor.UserID] < remaining[best.UserID]) {
				best, bestScore, bestShare = mentor, score, shared
			}
		}

		if best == nil {
			result.UnmatchedMentees = append(result.UnmatchedMentees, mentee.UserID)
			continue
		}

		remaining[best.UserID]--
		result.Assignments = append(result.Assignments, Assignment{
			MentorID: best.UserID,
			MenteeID: mentee.UserID,
			Affinity: bestScore,
			Shared:   bestShare,
		})
	}

	return result
}

// MentorshipPairKey identifies one mentor-mentee pair.
type MentorshipPairKey struct {
	MentorID int64
	MenteeID int64
}

func sharedTopics(tags map[string]struct{}, interests []string) []string {
	var shared []string
	seen := make(map[string]struct{}, len(interests))
	for _, interest := range interests {
		if _, dup := seen[interest]; dup {
			continue
		}
		seen[interest] = struct{}{}
		if _, ok := tags[interest]; ok {
			shared = append(shared, interest)
		}
	}
	sort.Strings(shared)
	return shared
}

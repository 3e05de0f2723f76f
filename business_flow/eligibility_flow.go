package businessflow

import (
	"context"
	"fmt"

	"github.com/convivio/convivio/models"
	"github.com/convivio/convivio/repository"
	"github.com/convivio/convivio/utils"
)

// MentorshipPools is the eligible mentorship population for one cycle:
// mentor and mentee candidates plus the set of already-active pairs, with
// every profile needed for notifications keyed by user id.
type MentorshipPools struct {
	Mentors     []MentorCandidate
	Mentees     []MenteeCandidate
	ActivePairs map[MentorshipPairKey]struct{}
	Profiles    map[int64]*models.User
}

// EligibilityFlow selects candidate pools from the user directory. It is
// side-effect free; any directory read failure aborts the run before a
// single row is written.
type EligibilityFlow interface {
	CoffeeChatPool(ctx context.Context) ([]*models.User, error)
	MentorshipPools(ctx context.Context) (*MentorshipPools, error)
}

type EligibilityFlowImpl struct {
	userRepo   repository.UserRepository
	mentorRepo repository.MentorRepository
	menteeRepo repository.MenteeRepository
	matchRepo  repository.MentorshipMatchRepository
}

func NewEligibilityFlow(
	userRepo repository.UserRepository,
	mentorRepo repository.MentorRepository,
	menteeRepo repository.MenteeRepository,
	matchRepo repository.MentorshipMatchRepository,
) EligibilityFlow {
	return &EligibilityFlowImpl{
		userRepo:   userRepo,
		mentorRepo: mentorRepo,
		menteeRepo: menteeRepo,
		matchRepo:  matchRepo,
	}
}

// CoffeeChatPool returns every approved, subscribed user.
func (f *EligibilityFlowImpl) CoffeeChatPool(ctx context.Context) ([]*models.User, error) {
	users, err := f.userRepo.ListEligible(ctx)
	if err != nil {
		return nil, NewBusinessError("DIRECTORY_UNAVAILABLE", "Failed to read eligible participants", fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err))
	}
	return users, nil
}

// MentorshipPools returns eligible mentors and mentees with the attributes
// the matcher scores on. Mentees that already hold an active mentor are
// treated as satisfied and excluded from the waiting pool.
func (f *EligibilityFlowImpl) MentorshipPools(ctx context.Context) (*MentorshipPools, error) {
	users, err := f.userRepo.ListEligible(ctx)
	if err != nil {
		return nil, NewBusinessError("DIRECTORY_UNAVAILABLE", "Failed to read eligible participants", fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err))
	}

	eligible := make(map[int64]*models.User, len(users))
	for _, u := range users {
		eligible[u.ID] = u
	}

	mentorRows, err := f.mentorRepo.ListAll(ctx)
	if err != nil {
		return nil, NewBusinessError("DIRECTORY_UNAVAILABLE", "Failed to read mentor profiles", fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err))
	}
	menteeRows, err := f.menteeRepo.ListByWaitingPriority(ctx)
	if err != nil {
		return nil, NewBusinessError("DIRECTORY_UNAVAILABLE", "Failed to read mentee profiles", fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err))
	}
	activeRows, err := f.matchRepo.ListActive(ctx)
	if err != nil {
		return nil, NewBusinessError("DIRECTORY_UNAVAILABLE", "Failed to read active mentorship matches", fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err))
	}
	activeCounts, err := f.matchRepo.ActiveCountByMentor(ctx)
	if err != nil {
		return nil, NewBusinessError("DIRECTORY_UNAVAILABLE", "Failed to count active mentorship matches", fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err))
	}

	pools := &MentorshipPools{
		ActivePairs: make(map[MentorshipPairKey]struct{}, len(activeRows)),
		Profiles:    eligible,
	}

	menteesWithMentor := make(map[int64]struct{})
	for _, row := range activeRows {
		pools.ActivePairs[MentorshipPairKey{MentorID: row.MentorID, MenteeID: row.MenteeID}] = struct{}{}
		menteesWithMentor[row.MenteeID] = struct{}{}
	}

	for _, row := range mentorRows {
		u, ok := eligible[row.UserID]
		if !ok || !utils.IsTrue(u.MentorFlag) {
			continue
		}
		pools.Mentors = append(pools.Mentors, MentorCandidate{
			UserID:      row.UserID,
			Tags:        row.Tags,
			Capacity:    row.MonthlyCapacity,
			ActiveCount: activeCounts[row.UserID],
		})
	}

	for _, row := range menteeRows {
		u, ok := eligible[row.UserID]
		if !ok || !utils.IsTrue(u.MenteeFlag) {
			continue
		}
		if _, satisfied := menteesWithMentor[row.UserID]; satisfied {
			continue
		}
		pools.Mentees = append(pools.Mentees, MenteeCandidate{
			UserID:       row.UserID,
			Interests:    row.Interests,
			WaitingSince: row.CreatedAt,
		})
	}

	return pools, nil
}

// Package businessflow contains the core business logic for the matching engine
package businessflow

import (
	"context"
	"time"

	"github.com/convivio/convivio/models"
	"github.com/convivio/convivio/utils"
)

// Clock supplies the current time. Injectable so due-checks and staleness
// scoring are independent of wall-clock time in tests.
type Clock func() time.Time

// UTCClock is the production clock.
func UTCClock() time.Time { return utils.UTCNow() }

// Program is the externally visible program identifier.
type Program string

const (
	ProgramCoffeeChat Program = "coffee-chat"
	ProgramMentorship Program = "mentorship"
)

// ParseProgram maps a program identifier to its run kind.
func ParseProgram(p string) (models.RunKind, error) {
	switch Program(p) {
	case ProgramCoffeeChat:
		return models.RunKindCoffeeChat, nil
	case ProgramMentorship:
		return models.RunKindMentorship, nil
	default:
		return "", ErrUnknownProgram
	}
}

// MatchNotifier delivers match notifications to participants. Delivery is
// best-effort and happens strictly after the matching transaction commits;
// implementations log per-recipient failures and never return them as fatal.
type MatchNotifier interface {
	NotifyCoffeePair(ctx context.Context, a, b *models.User) error
	NotifyMentorshipMatch(ctx context.Context, mentor, mentee *models.User, sharedTopics []string) error
}

// NopNotifier discards all notifications. Used when no dispatcher is wired.
type NopNotifier struct{}

func (NopNotifier) NotifyCoffeePair(ctx context.Context, a, b *models.User) error { return nil }

func (NopNotifier) NotifyMentorshipMatch(ctx context.Context, mentor, mentee *models.User, sharedTopics []string) error {
	return nil
}

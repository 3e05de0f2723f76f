package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/convivio/convivio/models"
	"github.com/convivio/convivio/utils"
	"github.com/redis/go-redis/v9"
)

// Notification is one queued delivery for one recipient on one channel.
type Notification struct {
	Channel        string `json:"channel"` // telegram | email
	TelegramUserID int64  `json:"telegram_user_id,omitempty"`
	Email          string `json:"email,omitempty"`
	Subject        string `json:"subject,omitempty"`
	Body           string `json:"body"`
}

// QueueNotifier builds per-recipient notifications for committed matches and
// pushes them onto the redis delivery queue. It honors each participant's
// communication mode; a participant with no usable channel is skipped, never
// failed. Without a redis client it delivers inline through the providers.
type QueueNotifier struct {
	rc        *redis.Client
	telegram  TelegramProvider
	email     EmailProvider
	questions []string
}

func NewQueueNotifier(rc *redis.Client, telegram TelegramProvider, email EmailProvider, starterQuestions []string) *QueueNotifier {
	return &QueueNotifier{
		rc:        rc,
		telegram:  telegram,
		email:     email,
		questions: starterQuestions,
	}
}

// NotifyCoffeePair notifies both sides of a coffee-chat pair about each other.
func (n *QueueNotifier) NotifyCoffeePair(ctx context.Context, a, b *models.User) error {
	if err := n.dispatchCoffee(ctx, a, b); err != nil {
		return err
	}
	return n.dispatchCoffee(ctx, b, a)
}

// NotifyMentorshipMatch notifies a mentor and mentee about their new match.
func (n *QueueNotifier) NotifyMentorshipMatch(ctx context.Context, mentor, mentee *models.User, sharedTopics []string) error {
	topics := "Not specified"
	if len(sharedTopics) > 0 {
		topics = strings.Join(sharedTopics, ", ")
	}

	mentorBody := fmt.Sprintf(
		"Mentorship match assigned\n\nYou have been assigned as a mentor to:\n\nName: %s\nSegment: %s\nAffiliation: %s\nShared topics: %s\nContact: %s\n\nAbout them:\n%s",
		prettyName(mentee), orDash(mentee.Segment), orDash(mentee.Affiliation), topics, contact(mentee), orDash(mentee.About),
	)
	if err := n.send(ctx, mentor, "Your new mentee", mentorBody); err != nil {
		return err
	}

	menteeBody := fmt.Sprintf(
		"Mentorship match assigned\n\nYour mentor:\n\nName: %s\nSegment: %s\nAffiliation: %s\nShared topics: %s\nContact: %s\n\nAbout them:\n%s",
		prettyName(mentor), orDash(mentor.Segment), orDash(mentor.Affiliation), topics, contact(mentor), orDash(mentor.About),
	)
	return n.send(ctx, mentee, "Your new mentor", menteeBody)
}

func (n *QueueNotifier) dispatchCoffee(ctx context.Context, to, match *models.User) error {
	body := fmt.Sprintf(
		"Your coffee-chat match for this week\n\nName: %s\nSegment: %s\nAffiliation: %s\nContact: %s\n\nAbout them:\n%s%s",
		prettyName(match), orDash(match.Segment), orDash(match.Affiliation), contact(match), orDash(match.About),
		n.questionsBlock(),
	)
	return n.send(ctx, to, "Your coffee-chat match", body)
}

func (n *QueueNotifier) questionsBlock() string {
	if len(n.questions) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n\nStarter questions:\n")
	for _, q := range n.questions {
		sb.WriteString("- ")
		sb.WriteString(q)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (n *QueueNotifier) send(ctx context.Context, to *models.User, subject, body string) error {
	if to == nil {
		return nil
	}

	if to.CommunicationMode.WantsTelegram() {
		if err := n.enqueue(ctx, Notification{
			Channel:        "telegram",
			TelegramUserID: to.ID,
			Body:           body,
		}); err != nil {
			return err
		}
	}

	if email := deref(to.Email); to.CommunicationMode.WantsEmail() && email != "" {
		if err := n.enqueue(ctx, Notification{
			Channel: "email",
			Email:   email,
			Subject: subject,
			Body:    body,
		}); err != nil {
			return err
		}
	}

	return nil
}

func (n *QueueNotifier) enqueue(ctx context.Context, msg Notification) error {
	if n.rc == nil {
		return n.deliver(ctx, msg)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.rc.LPush(ctx, utils.NotificationQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func (n *QueueNotifier) deliver(ctx context.Context, msg Notification) error {
	switch msg.Channel {
	case "telegram":
		if n.telegram == nil {
			return fmt.Errorf("telegram provider not configured")
		}
		return n.telegram.SendMessage(ctx, msg.TelegramUserID, msg.Body)
	case "email":
		if n.email == nil {
			return fmt.Errorf("email provider not configured")
		}
		return n.email.SendEmail(ctx, msg.Email, msg.Subject, msg.Body)
	default:
		return fmt.Errorf("unknown notification channel %q", msg.Channel)
	}
}

// StartDispatchWorker consumes the redis delivery queue until the context is
// canceled. Failed deliveries are logged and dropped; the queue is
// best-effort by contract.
func (n *QueueNotifier) StartDispatchWorker(parent context.Context) func() {
	if n.rc == nil {
		return func() {}
	}

	workerCtx, cancel := context.WithCancel(parent)
	go func() {
		for {
			select {
			case <-workerCtx.Done():
				return
			default:
			}

			res, err := n.rc.BRPop(workerCtx, utils.NotificationPopTimeout, utils.NotificationQueueKey).Result()
			if err != nil {
				if workerCtx.Err() != nil {
					return
				}
				if err == redis.Nil {
					continue
				}
				log.Printf("notification queue pop failed: %v", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			var msg Notification
			if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
				log.Printf("malformed notification payload dropped: %v", err)
				continue
			}
			if err := n.deliver(workerCtx, msg); err != nil {
				log.Printf("notification delivery failed (%s): %v", msg.Channel, err)
			}
		}
	}()
	return cancel
}

func prettyName(u *models.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	if username := deref(u.Username); username != "" {
		return "@" + username
	}
	return fmt.Sprintf("user %d", u.ID)
}

func contact(u *models.User) string {
	var parts []string
	if email := deref(u.Email); email != "" {
		parts = append(parts, email)
	}
	if username := deref(u.Username); username != "" {
		parts = append(parts, "@"+username)
	}
	if len(parts) == 0 {
		return "Not provided"
	}
	return strings.Join(parts, ", ")
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "Not specified"
	}
	return *s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

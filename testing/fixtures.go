package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/convivio/convivio/models"
	"github.com/convivio/convivio/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates an approved, subscribed user with the given id
func (f *TestFixtures) CreateTestUser(id int64) (*models.User, error) {
	username := fmt.Sprintf("user%d", id)
	email := fmt.Sprintf("user%d@example.com", id)
	segment := "Engineering"

	user := &models.User{
		ID:                id,
		Username:          &username,
		FullName:          fmt.Sprintf("Test User %d", id),
		Email:             &email,
		Subscribed:        utils.ToPtr(true),
		CommunicationMode: models.CommunicationModeBoth,
		Status:            models.UserStatusApproved,
		Segment:           &segment,
	}

	if err := f.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}

	return user, nil
}

// CreateTestUserWithStatus creates a user with an explicit status and subscription
func (f *TestFixtures) CreateTestUserWithStatus(id int64, status models.UserStatus, subscribed bool) (*models.User, error) {
	username := fmt.Sprintf("user%d", id)

	user := &models.User{
		ID:                id,
		Username:          &username,
		FullName:          fmt.Sprintf("Test User %d", id),
		Subscribed:        utils.ToPtr(subscribed),
		CommunicationMode: models.CommunicationModeTelegramOnly,
		Status:            status,
	}

	if err := f.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}

	return user, nil
}

// CreateTestMentor creates a user flagged as mentor plus its mentor profile
func (f *TestFixtures) CreateTestMentor(id int64, tags []string, capacity int) (*models.Mentor, error) {
	user, err := f.CreateTestUser(id)
	if err != nil {
		return nil, err
	}
	user.MentorFlag = utils.ToPtr(true)
	if err := f.DB.DB.Save(user).Error; err != nil {
		return nil, fmt.Errorf("failed to flag test mentor: %w", err)
	}

	mentor := &models.Mentor{
		UserID:          id,
		Tags:            tags,
		MonthlyCapacity: capacity,
	}
	if err := f.DB.DB.Create(mentor).Error; err != nil {
		return nil, fmt.Errorf("failed to create test mentor: %w", err)
	}

	return mentor, nil
}

// CreateTestMentee creates a user flagged as mentee plus its mentee profile.
// waitingSince backdates the request so waiting priority is deterministic.
func (f *TestFixtures) CreateTestMentee(id int64, interests []string, waitingSince time.Time) (*models.Mentee, error) {
	user, err := f.CreateTestUser(id)
	if err != nil {
		return nil, err
	}
	user.MenteeFlag = utils.ToPtr(true)
	if err := f.DB.DB.Save(user).Error; err != nil {
		return nil, fmt.Errorf("failed to flag test mentee: %w", err)
	}

	mentee := &models.Mentee{
		UserID:    id,
		Interests: interests,
		CreatedAt: waitingSince,
	}
	if err := f.DB.DB.Create(mentee).Error; err != nil {
		return nil, fmt.Errorf("failed to create test mentee: %w", err)
	}

	return mentee, nil
}

// CreateTestPairing records a prior coffee-chat match between two users
func (f *TestFixtures) CreateTestPairing(userA, userB int64, lastMatchedAt time.Time) (*models.Pairing, error) {
	a, b := utils.CanonicalPair(userA, userB)
	pairing := &models.Pairing{
		UserA:         a,
		UserB:         b,
		LastMatchedAt: lastMatchedAt,
	}
	if err := f.DB.DB.Create(pairing).Error; err != nil {
		return nil, fmt.Errorf("failed to create test pairing: %w", err)
	}
	return pairing, nil
}

// CreateTestScheduleConfig seeds the single-row schedule state
func (f *TestFixtures) CreateTestScheduleConfig(days []string, timeOfDay string) (*models.ScheduleConfig, error) {
	cfg := &models.ScheduleConfig{
		ID:           models.ScheduleConfigID,
		ScheduleDays: days,
		ScheduleTime: timeOfDay,
	}
	if err := f.DB.DB.Create(cfg).Error; err != nil {
		return nil, fmt.Errorf("failed to create test schedule config: %w", err)
	}
	return cfg, nil
}

// RandomUserID returns a random positive user id for tests that need
// non-colliding directory entries
func RandomUserID() int64 {
	return rand.Int63n(1_000_000) + 1
}

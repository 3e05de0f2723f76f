package utils

import (
	"time"
)

// Run control constants
const (
	// StaleRunTimeout is how long an in-progress run record may exist before
	// a subsequent due-check treats it as crashed and finalizes it as failed
	StaleRunTimeout = 30 * time.Minute

	// DefaultScheduleTime is the time-of-day a cycle fires when none is configured
	DefaultScheduleTime = "09:00"

	// DefaultLookbackWeeks is how far back a prior pairing still counts as recent
	DefaultLookbackWeeks = 4
)

// Notification constants
const (
	// NotificationQueueKey is the redis list the dispatcher worker consumes
	NotificationQueueKey = "convivio:notifications"

	// NotificationPopTimeout bounds each blocking pop on the queue
	NotificationPopTimeout = 5 * time.Second
)

// Cache keys
const (
	CacheHealthKey = "convivio:cache:health"
)

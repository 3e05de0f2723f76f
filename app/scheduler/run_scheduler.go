// Package scheduler
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	businessflow "github.com/convivio/convivio/business_flow"
	"github.com/convivio/convivio/models"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RunScheduler periodically asks the run controller to execute scheduled
// matching cycles. The controller owns the due-check and mutual exclusion;
// the scheduler only supplies the heartbeat, so a missed tick costs nothing
// and an extra tick is harmless.
type RunScheduler struct {
	runFlow  businessflow.RunFlow
	logger   *log.Logger
	interval time.Duration
	programs []string
}

func NewRunScheduler(runFlow businessflow.RunFlow, interval time.Duration) *RunScheduler {
	if interval <= 0 {
		interval = time.Minute
	}

	s := &RunScheduler{
		runFlow:  runFlow,
		interval: interval,
		programs: []string{
			string(businessflow.ProgramCoffeeChat),
			string(businessflow.ProgramMentorship),
		},
	}
	s.initSchedulerLogger()

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a
// rotated file under data/ (or /data for containerized environments).
func (s *RunScheduler) initSchedulerLogger() {
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		rotated := &lumberjack.Logger{
			Filename:   filepath.Join(dir, "scheduler.log"),
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		mw := io.MultiWriter(os.Stdout, rotated)
		s.logger = log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return
	}

	// Fallback to the default stdout logger if no directory is writable
	s.logger = log.Default()
	s.logger.Printf("scheduler: failed to initialize file logger, using stdout")
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *RunScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *RunScheduler) runOnce(ctx context.Context) {
	for _, program := range s.programs {
		record, err := s.runFlow.RunMatching(ctx, program, models.RunTypeScheduled, "scheduler")
		if err != nil {
			switch {
			case businessflow.IsScheduleNotDue(err):
				// Normal between cycles, not worth a log line
			case businessflow.IsConcurrentRunConflict(err):
				s.logger.Printf("scheduler: %s run skipped, another run is in progress", program)
			default:
				s.logger.Printf("scheduler: %s run failed: %v", program, err)
			}
			continue
		}
		s.logger.Printf("scheduler: %s run %s completed with %d pairs", program, record.UUID, record.PairCount)
	}
}

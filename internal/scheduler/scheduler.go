// Package scheduler drives Lumi's periodic jobs, such as the follow-up sweep,
// from cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultFollowUpSpec runs a job at the start of every minute.
const DefaultFollowUpSpec = "* * * * *"

// Opts configures the scheduler.
type Opts struct {
	Location *time.Location
}

type Option func(*Opts)

// WithLocation evaluates cron expressions in loc instead of UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *Opts) {
		if loc != nil {
			o.Location = loc
		}
	}
}

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NewScheduler creates a stopped scheduler using the 5-field cron format.
// A job still running when its next tick arrives is skipped for that tick.
func NewScheduler(opts ...Option) *Scheduler {
	cfg := Opts{Location: time.UTC}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	return &Scheduler{cron: c}
}

// ValidateSpec reports whether expr is a valid 5-field cron expression.
func ValidateSpec(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// AddJob schedules task with the provided cron expression.
func (s *Scheduler) AddJob(expr string, task func()) error {
	if _, err := s.cron.AddFunc(expr, task); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	slog.Info("Scheduler.Run: started", "jobs", len(s.cron.Entries()))
	<-ctx.Done()
	s.Stop()
	slog.Info("Scheduler.Run: stopped")
	return nil
}

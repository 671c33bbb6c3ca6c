// Package scheduler hands out periodic nest tick subscriptions backed by a
// gocron scheduler. Each subscription is one singleton duration job; a tick
// that overruns its interval is skipped rather than stacked.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"nestcore/internal/logfields"
	"nestcore/internal/nest"
)

// ErrNonPositiveInterval is returned for a zero or negative tick interval.
var ErrNonPositiveInterval = errors.New("tick interval must be positive")

// Scheduler wraps gocron scheduler for lifecycle-bound tick callbacks.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger

	mu      sync.Mutex
	started bool
}

// New creates a scheduler. Jobs only fire after Start.
func New(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// Start begins firing jobs.
func (s *Scheduler) Start(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.logger.Info("Starting tick scheduler")
	s.scheduler.Start()
	s.started = true
}

// Stop shuts the scheduler down and waits for running ticks.
func (s *Scheduler) Stop(_ context.Context) error {
	s.logger.Info("Stopping tick scheduler")
	return s.scheduler.Shutdown()
}

// Subscribe implements nest.Scheduler.
func (s *Scheduler) Subscribe(name string, interval time.Duration, fn func()) (nest.Subscription, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNonPositiveInterval, interval)
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tick job %s: %w", name, err)
	}
	s.logger.Debug("Tick subscribed", logfields.Subject(name), slog.Duration("interval", interval))
	return &subscription{owner: s, job: job}, nil
}

// Jobs returns the names of the active subscriptions.
func (s *Scheduler) Jobs() []string {
	jobs := s.scheduler.Jobs()
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Name())
	}
	return out
}

type subscription struct {
	owner *Scheduler
	job   gocron.Job
	once  sync.Once
	err   error
}

// Cancel removes the job. Repeated calls return the first result.
func (s *subscription) Cancel() error {
	s.once.Do(func() {
		err := s.owner.scheduler.RemoveJob(s.job.ID())
		if err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
			s.err = fmt.Errorf("remove tick job %s: %w", s.job.Name(), err)
			return
		}
		s.owner.logger.Debug("Tick released", logfields.Subject(s.job.Name()))
	})
	return s.err
}

package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler drives reconciliation cycles: periodically per the configured
// cron schedule, and immediately when the registration client kicks it after
// a fallback write.
type Scheduler struct {
	reconciler *Reconciler
	cron       *cron.Cron
	kickCh     chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewScheduler creates a new reconciliation scheduler.
func NewScheduler(reconciler *Reconciler) *Scheduler {
	return &Scheduler{
		reconciler: reconciler,
		cron:       cron.New(),
		kickCh:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Start begins scheduled reconciliation. With an empty schedule, cycles run
// only on kicks.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	schedule := s.reconciler.config.Schedule
	if schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
		}
		if _, err := s.cron.AddFunc(schedule, s.Kick); err != nil {
			return fmt.Errorf("failed to schedule reconciliation: %w", err)
		}
		s.cron.Start()
	}

	s.wg.Add(1)
	go s.loop(ctx)

	s.running = true
	s.reconciler.logger.Info("reconciliation scheduler started",
		"schedule", schedule,
		"batch_size", s.reconciler.config.BatchSize,
		"max_attempts", s.reconciler.config.MaxAttempts,
		"max_cycles", s.reconciler.config.MaxCycles,
	)

	return nil
}

// Kick requests an immediate reconciliation cycle. Safe to call from any
// goroutine; coalesces when a cycle is already queued.
func (s *Scheduler) Kick() {
	select {
	case s.kickCh <- struct{}{}:
	default:
	}
}

// loop serializes reconciliation cycles so only one runs at a time.
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.kickCh:
			if _, _, err := s.reconciler.Reconcile(ctx); err != nil {
				s.reconciler.logger.Error("reconciliation cycle failed", "error", err)
			}
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

// Stop stops the scheduler and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	close(s.done)
	s.wg.Wait()
	s.running = false

	s.reconciler.logger.Info("reconciliation scheduler stopped")
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Package scheduler runs the ingestion cycle on a fixed interval, dropping
// ticks that land while a previous run is still in progress.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/couchcryptid/terror-data-ingest/internal/observability"
	"github.com/robfig/cron/v3"
)

// defaultInitialDelay gives adapters a moment to settle before the first run.
const defaultInitialDelay = 5 * time.Second

// Job is one ingestion cycle. Implementations handle their own errors; a run
// either finishes or panics.
type Job func(ctx context.Context)

// Scheduler triggers a Job on an interval. Overlapping ticks are skipped, so
// a slow run never stacks behind itself.
type Scheduler struct {
	job      Job
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics

	initialDelay time.Duration

	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New creates a Scheduler that runs job every interval.
func New(job Job, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		job:          job,
		interval:     interval,
		logger:       logger,
		metrics:      metrics,
		initialDelay: defaultInitialDelay,
	}
}

// Start arms the interval and kicks off the first run after a short delay.
// It returns immediately; runs happen on background goroutines.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.tick(runCtx)
	}); err != nil {
		cancel()
		return fmt.Errorf("schedule ingestion: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-runCtx.Done():
			return
		case <-time.After(s.initialDelay):
			s.tick(runCtx)
		}
	}()

	s.cron.Start()
	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop cancels in-flight runs and waits for the interval loop to drain.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// tick runs the job unless one is already in progress.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.metrics.RunsSkipped.Inc()
		s.logger.Info("previous run still in progress, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("ingestion run panicked", "panic", r, "stack", string(debug.Stack()))
		}
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.job(ctx)
}

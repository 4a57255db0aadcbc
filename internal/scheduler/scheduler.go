// Package scheduler runs the background cleanup jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/storage"
)

// Sweeper is the storage lifecycle surface the scheduler drives. A zero
// userID sweeps every user's artifacts.
type Sweeper interface {
	RetentionSweep(ctx context.Context, userID models.ULID) (storage.SweepResult, error)
	TempSweep(ctx context.Context) (int, error)
}

// Scheduler owns the cleanup cron entries and their lifecycle. Jobs run on
// a context derived from Start's, so Stop cancels any in-flight sweep and
// waits for running jobs to return.
type Scheduler struct {
	sweeper Sweeper
	cfg     config.CleanupConfig
	logger  *slog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a cleanup scheduler.
func New(sweeper Sweeper, cfg config.CleanupConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sweeper: sweeper,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start registers the cron entries and begins scheduling. It is a no-op
// when cleanup is disabled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		s.logger.Info("cleanup scheduler disabled")
		return nil
	}
	if s.cron != nil {
		return fmt.Errorf("cleanup scheduler already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	// Schedules carry a seconds field.
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(s.cfg.RetentionCron, s.runRetention); err != nil {
		s.cancel()
		s.ctx, s.cancel = nil, nil
		return fmt.Errorf("invalid retention cron %q: %w", s.cfg.RetentionCron, err)
	}
	if _, err := c.AddFunc(s.cfg.TempSweepCron, s.runTempSweep); err != nil {
		s.cancel()
		s.ctx, s.cancel = nil, nil
		return fmt.Errorf("invalid temp sweep cron %q: %w", s.cfg.TempSweepCron, err)
	}
	c.Start()
	s.cron = c

	s.logger.Info("cleanup scheduler started",
		"retention_cron", s.cfg.RetentionCron,
		"temp_sweep_cron", s.cfg.TempSweepCron)
	return nil
}

// Stop cancels in-flight sweeps and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	s.cron, s.ctx, s.cancel = nil, nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
		s.logger.Info("cleanup scheduler stopped")
	}
}

// RunNow executes one retention sweep followed by one temp sweep. It backs
// the manual cleanup trigger, which passes the caller's user ID, and the
// one-shot CLI command, which passes zero to sweep everyone.
func (s *Scheduler) RunNow(ctx context.Context, userID models.ULID) (storage.SweepResult, int, error) {
	result, err := s.sweeper.RetentionSweep(ctx, userID)
	if err != nil {
		return result, 0, err
	}
	removed, err := s.sweeper.TempSweep(ctx)
	return result, removed, err
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

func (s *Scheduler) runRetention() {
	if _, err := s.sweeper.RetentionSweep(s.jobContext(), models.ULID{}); err != nil {
		s.logger.Error("retention sweep failed", "error", err)
	}
}

func (s *Scheduler) runTempSweep() {
	if _, err := s.sweeper.TempSweep(s.jobContext()); err != nil {
		s.logger.Error("temp sweep failed", "error", err)
	}
}

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// Runner executes one pipeline run. Implemented by Service.
type Runner interface {
	Run(ctx context.Context, opts Options) (*RunResult, error)
}

// Scheduler rebuilds the datamart on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	entry    cron.EntryID
	schedule string
	// ctx is cancelled by Stop so an in-flight run can wind down.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler that calls runner with opts on each tick.
// Ticks that fire while a run is still going are skipped.
func NewScheduler(runner Runner, opts Options, logger *slog.Logger) *Scheduler {
	opts.Trigger = domain.TriggerScheduled
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		runner: runner,
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start registers spec and starts the cron loop.
func (s *Scheduler) Start(spec string) error {
	if err := s.Reload(spec); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("datamart scheduler started", "schedule", spec)
	return nil
}

// Stop halts the cron loop, cancels a running build and waits for it.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("datamart scheduler stopped")
}

// Reload replaces the schedule. An invalid spec keeps the current one.
func (s *Scheduler) Reload(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return domain.ErrValidation("invalid cron schedule %q: %v", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		return domain.ErrValidation("invalid cron schedule %q: %v", spec, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = id
	s.schedule = spec
	return nil
}

// Schedule returns the active cron spec.
func (s *Scheduler) Schedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

func (s *Scheduler) tick() {
	res, err := s.runner.Run(s.ctx, s.opts)
	switch {
	case errors.Is(err, ErrBusy):
		s.logger.Info("scheduled build skipped, a run is in progress")
	case err != nil:
		s.logger.Warn("scheduled build failed", "error", err)
	default:
		s.logger.Info("scheduled build finished", "datasets", len(res.Files))
	}
}

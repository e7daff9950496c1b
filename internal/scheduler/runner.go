package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RunnerConfig controls the periodic trigger wiring.
type RunnerConfig struct {
	// TickSchedule is the cron spec for the due-alert pass.
	TickSchedule string

	// SweepSchedule is the cron spec for the expiry cleanup pass.
	SweepSchedule string

	// TickTimeout bounds one pass; alerts not reached before the budget
	// runs out stay due and are retried on the next tick.
	TickTimeout time.Duration
}

// Runner triggers the scheduler from a cron timer: one immediate tick
// at start, then the configured periodic ticks and expiry sweeps.
type Runner struct {
	logger    *zap.Logger
	scheduler *Scheduler
	config    RunnerConfig
	cron      *cron.Cron
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// NewRunner creates a runner around the scheduler.
func NewRunner(scheduler *Scheduler, config RunnerConfig, logger *zap.Logger) *Runner {
	if config.TickSchedule == "" {
		config.TickSchedule = "@every 5m"
	}
	if config.SweepSchedule == "" {
		config.SweepSchedule = "@every 1h"
	}
	if config.TickTimeout <= 0 {
		config.TickTimeout = 4 * time.Minute
	}

	cronOptions := []cron.Option{
		cron.WithChain(cron.Recover(&cronLogger{logger: logger.Named("cron")})),
	}

	return &Runner{
		logger:    logger.Named("runner"),
		scheduler: scheduler,
		config:    config,
		cron:      cron.New(cronOptions...),
	}
}

// Start registers the cron entries, runs the startup tick, and starts
// the timer.
func (r *Runner) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.config.TickSchedule, func() { r.runTick(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule tick: %w", err)
	}
	if _, err := r.cron.AddFunc(r.config.SweepSchedule, func() { r.runSweep(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}

	// Catch up on anything that came due while the process was down.
	r.runSweep(ctx)
	r.runTick(ctx)

	r.cron.Start()
	r.logger.Info("Runner started",
		zap.String("tick_schedule", r.config.TickSchedule),
		zap.String("sweep_schedule", r.config.SweepSchedule),
		zap.Duration("tick_timeout", r.config.TickTimeout))

	return nil
}

// Stop stops the timer and waits for an in-flight run to complete.
func (r *Runner) Stop() {
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	r.logger.Info("Runner stopped")
}

func (r *Runner) runTick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, r.config.TickTimeout)
	defer cancel()

	processed, err := r.scheduler.Tick(tickCtx)
	if err != nil {
		r.logger.Error("Tick failed", zap.Error(err))
		return
	}
	if processed > 0 {
		r.logger.Info("Tick completed", zap.Int("processed", processed))
	}
}

func (r *Runner) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, r.config.TickTimeout)
	defer cancel()

	if _, err := r.scheduler.SweepExpired(sweepCtx); err != nil {
		r.logger.Error("Expiry sweep failed", zap.Error(err))
	}
}

// Package scheduler drives the scheduled alert pipeline: it discovers
// due alerts, publishes them, advances or deactivates their recurrence
// state, and sweeps expired records.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beaconhq/alert-pipeline/internal/model"
	"github.com/beaconhq/alert-pipeline/internal/recurrence"
	"github.com/beaconhq/alert-pipeline/internal/storage"
)

// Publisher turns one due scheduled alert into a live alert.
type Publisher interface {
	Publish(ctx context.Context, scheduled *model.ScheduledAlert) (*model.LiveAlert, error)
}

// Scheduler executes ticks over the scheduled alert store. Only one
// tick runs at a time: a tick arriving while another is in flight is a
// no-op, not a queued second run.
type Scheduler struct {
	logger    *zap.Logger
	alerts    storage.ScheduledAlertStore
	publisher Publisher

	mu    sync.Mutex
	stats model.RunStats
}

// New creates a scheduler.
func New(alerts storage.ScheduledAlertStore, publisher Publisher, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger:    logger.Named("scheduler"),
		alerts:    alerts,
		publisher: publisher,
	}
}

// Stats returns a copy of the current run bookkeeping.
func (s *Scheduler) Stats() model.RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// begin flips the scheduler to running. It reports false when a tick is
// already in flight.
func (s *Scheduler) begin(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats.Running {
		return false
	}
	s.stats.Running = true
	s.stats.LastExecutionTime = now
	return true
}

// finish returns the scheduler to idle and adds the processed count.
func (s *Scheduler) finish(processed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Running = false
	s.stats.ExecutionCount += int64(processed)
}

// Tick runs one scheduling pass: fetch due alerts and process each in
// fetch order. It returns the number of alerts processed. A tick that
// found another tick running returns (0, nil) immediately.
//
// Failures are isolated per alert: a publish failure is logged and the
// record stays due for the next tick, so delivery is at-least-once.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	if !s.begin(now) {
		s.logger.Debug("Tick skipped, previous run still in flight")
		return 0, nil
	}

	processed := 0
	defer func() { s.finish(processed) }()

	due, err := s.alerts.DueScheduledAlerts(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch due alerts: %w", err)
	}

	if len(due) == 0 {
		return 0, nil
	}

	s.logger.Info("Processing due alerts", zap.Int("count", len(due)))

	for _, alert := range due {
		if err := ctx.Err(); err != nil {
			// Tick budget exhausted. Remaining alerts stay due and are
			// picked up by the next tick.
			s.logger.Warn("Tick aborted before batch completed",
				zap.Int("processed", processed),
				zap.Int("remaining", len(due)-processed),
				zap.Error(err))
			return processed, nil
		}

		s.executeAlert(ctx, alert)
		processed++
	}

	return processed, nil
}

// executeAlert publishes one due alert and persists its next state.
func (s *Scheduler) executeAlert(ctx context.Context, alert *model.ScheduledAlert) {
	if _, err := s.publisher.Publish(ctx, alert); err != nil {
		// The record is left active and due so the next tick retries it.
		s.logger.Error("Failed to publish scheduled alert",
			zap.String("schedule_id", alert.ID),
			zap.String("organization_id", alert.OrganizationID),
			zap.Error(err))
		return
	}

	if alert.IsRecurring && alert.Recurrence != nil {
		s.advanceRecurrence(ctx, alert)
		return
	}

	// Single-shot alerts deactivate after their one successful execution.
	if err := s.alerts.DeactivateScheduledAlert(ctx, alert.ID); err != nil {
		// Deactivation failure leaves the record due; the duplicate
		// publish on the next tick is the documented at-least-once cost.
		s.logger.Error("Failed to deactivate scheduled alert",
			zap.String("schedule_id", alert.ID),
			zap.Error(err))
	}
}

// advanceRecurrence computes the next occurrence and either reschedules
// or deactivates the alert.
func (s *Scheduler) advanceRecurrence(ctx context.Context, alert *model.ScheduledAlert) {
	next, err := recurrence.Next(alert.ScheduledAt, *alert.Recurrence)
	if err != nil {
		switch {
		case errors.Is(err, recurrence.ErrRecurrenceFinished):
			s.logger.Info("Recurrence reached its end date, deactivating",
				zap.String("schedule_id", alert.ID))
		case errors.Is(err, recurrence.ErrInvalidRecurrence):
			s.logger.Warn("Invalid recurrence pattern, deactivating",
				zap.String("schedule_id", alert.ID),
				zap.Error(err))
		default:
			s.logger.Error("Failed to compute next occurrence, deactivating",
				zap.String("schedule_id", alert.ID),
				zap.Error(err))
		}
		if err := s.alerts.DeactivateScheduledAlert(ctx, alert.ID); err != nil {
			s.logger.Error("Failed to deactivate scheduled alert",
				zap.String("schedule_id", alert.ID),
				zap.Error(err))
		}
		return
	}

	if err := s.alerts.AdvanceSchedule(ctx, alert.ID, next); err != nil {
		s.logger.Error("Failed to advance schedule",
			zap.String("schedule_id", alert.ID),
			zap.Time("next", next),
			zap.Error(err))
		return
	}

	s.logger.Info("Rescheduled recurring alert",
		zap.String("schedule_id", alert.ID),
		zap.Time("next", next))
}

// SweepExpired deactivates active alerts whose expiry has passed,
// independent of due status. The pass is idempotent and
// order-independent; running it twice produces the same end state. It
// returns the number of alerts deactivated.
func (s *Scheduler) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	expired, err := s.alerts.ExpiredScheduledAlerts(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch expired alerts: %w", err)
	}

	deactivated := 0
	for _, alert := range expired {
		if err := s.alerts.DeactivateScheduledAlert(ctx, alert.ID); err != nil {
			s.logger.Error("Failed to deactivate expired alert",
				zap.String("schedule_id", alert.ID),
				zap.Error(err))
			continue
		}
		deactivated++
	}

	if deactivated > 0 {
		s.logger.Info("Deactivated expired alerts", zap.Int("count", deactivated))
	}

	return deactivated, nil
}

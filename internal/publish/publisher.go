// Package publish turns a due scheduled alert into a persisted live
// alert and triggers best-effort fan-out to eligible recipients.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beaconhq/alert-pipeline/internal/model"
	"github.com/beaconhq/alert-pipeline/internal/notify"
	"github.com/beaconhq/alert-pipeline/internal/storage"
)

// liveAlertTTL is the fixed offset from posting after which a published
// alert stops being user-visible.
const liveAlertTTL = 14 * 24 * time.Hour

// ErrPersistence is returned when the primary live-alert write fails.
// No fan-out happens in that case and the scheduled record stays due.
var ErrPersistence = errors.New("persistence failed")

// Resolver yields the eligible recipient set for one fan-out.
type Resolver interface {
	EligibleRecipients(ctx context.Context, orgID, posterID, groupID string) ([]string, error)
}

// Fanout delivers a published alert to a recipient set.
type Fanout interface {
	Dispatch(ctx context.Context, recipients []string, alert *model.LiveAlert) []notify.Outcome
}

// Publisher persists live alerts and fans them out.
type Publisher struct {
	logger     *zap.Logger
	alerts     storage.LiveAlertStore
	orgs       storage.OrganizationStore
	resolver   Resolver
	dispatcher Fanout
}

// NewPublisher creates a publisher.
func NewPublisher(alerts storage.LiveAlertStore, orgs storage.OrganizationStore, resolver Resolver, dispatcher Fanout, logger *zap.Logger) *Publisher {
	return &Publisher{
		logger:     logger.Named("publisher"),
		alerts:     alerts,
		orgs:       orgs,
		resolver:   resolver,
		dispatcher: dispatcher,
	}
}

// Publish snapshots the scheduled definition into an immutable live
// alert, persists it, bumps the organization's alert counter, and
// triggers fan-out.
//
// The live-alert write is the one hard requirement: if it fails the
// publish fails and no fan-out is attempted. A failed counter increment
// only logs a warning; the alert stays visible and the drift is left to
// a reconciliation sweep. Fan-out failures never roll back the publish.
func (p *Publisher) Publish(ctx context.Context, scheduled *model.ScheduledAlert) (*model.LiveAlert, error) {
	now := time.Now().UTC()
	alert := &model.LiveAlert{
		ID:               uuid.New().String(),
		OrganizationID:   scheduled.OrganizationID,
		OrganizationName: scheduled.OrganizationName,
		GroupID:          scheduled.GroupID,
		GroupName:        scheduled.GroupName,
		Title:            scheduled.Title,
		Description:      scheduled.Description,
		Type:             scheduled.Type,
		Severity:         scheduled.Severity,
		Location:         scheduled.Location,
		PosterID:         scheduled.PosterID,
		PosterName:       scheduled.PosterName,
		PostedAt:         now,
		ExpiresAt:        now.Add(liveAlertTTL),
		Active:           true,
		ImageURLs:        scheduled.ImageURLs,
	}

	if err := p.alerts.CreateLiveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("%w: failed to create live alert for schedule %s: %v", ErrPersistence, scheduled.ID, err)
	}

	if err := p.orgs.IncrementAlertCount(ctx, scheduled.OrganizationID, 1); err != nil {
		// Counter drift is acceptable; the alert record is already visible.
		p.logger.Warn("Failed to increment organization alert count",
			zap.String("organization_id", scheduled.OrganizationID),
			zap.String("alert_id", alert.ID),
			zap.Error(err))
	}

	p.logger.Info("Published live alert",
		zap.String("alert_id", alert.ID),
		zap.String("schedule_id", scheduled.ID),
		zap.String("organization_id", scheduled.OrganizationID),
		zap.Time("expires_at", alert.ExpiresAt))

	p.fanOut(ctx, scheduled, alert)

	return alert, nil
}

// fanOut resolves recipients and dispatches notifications. Everything in
// here is best-effort and surfaces only through logs.
func (p *Publisher) fanOut(ctx context.Context, scheduled *model.ScheduledAlert, alert *model.LiveAlert) {
	recipients, err := p.resolver.EligibleRecipients(ctx, scheduled.OrganizationID, scheduled.PosterID, scheduled.GroupID)
	if err != nil {
		p.logger.Error("Failed to resolve recipients, skipping fan-out",
			zap.String("alert_id", alert.ID),
			zap.String("organization_id", scheduled.OrganizationID),
			zap.Error(err))
		return
	}

	if len(recipients) == 0 {
		p.logger.Info("No eligible recipients for alert",
			zap.String("alert_id", alert.ID),
			zap.String("organization_id", scheduled.OrganizationID))
		return
	}

	p.dispatcher.Dispatch(ctx, recipients, alert)
}

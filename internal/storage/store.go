package storage

import (
	"context"
	"errors"
	"time"

	"github.com/beaconhq/alert-pipeline/internal/model"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// ScheduledAlertStore defines the persistence operations the execution
// scheduler relies on. All mutations are confined to the owning record;
// there are no cascading writes.
type ScheduledAlertStore interface {
	// CreateScheduledAlert inserts a new scheduled alert record.
	CreateScheduledAlert(ctx context.Context, alert *model.ScheduledAlert) error

	// GetScheduledAlert retrieves a scheduled alert by ID.
	GetScheduledAlert(ctx context.Context, id string) (*model.ScheduledAlert, error)

	// DueScheduledAlerts returns active alerts whose scheduled time has
	// passed, oldest-due first.
	DueScheduledAlerts(ctx context.Context, now time.Time) ([]*model.ScheduledAlert, error)

	// AdvanceSchedule moves an alert's scheduled time to its next
	// occurrence in place, leaving it active.
	AdvanceSchedule(ctx context.Context, id string, next time.Time) error

	// DeactivateScheduledAlert sets is_active=false. Deactivating an
	// already-inactive record is a no-op, not an error.
	DeactivateScheduledAlert(ctx context.Context, id string) error

	// ExpiredScheduledAlerts returns active alerts whose expiry has passed,
	// regardless of due status.
	ExpiredScheduledAlerts(ctx context.Context, now time.Time) ([]*model.ScheduledAlert, error)
}

// LiveAlertStore persists published alerts.
type LiveAlertStore interface {
	// CreateLiveAlert inserts the published alert record.
	CreateLiveAlert(ctx context.Context, alert *model.LiveAlert) error

	// LiveAlertsByOrganization returns an organization's published alerts,
	// newest first.
	LiveAlertsByOrganization(ctx context.Context, orgID string) ([]*model.LiveAlert, error)
}

// OrganizationStore manages organizations and their alert counters.
type OrganizationStore interface {
	CreateOrganization(ctx context.Context, org *model.Organization) error
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)

	// IncrementAlertCount atomically adjusts the organization's alert
	// counter. Implementations must use a store-side increment, never a
	// read-modify-write cycle.
	IncrementAlertCount(ctx context.Context, orgID string, delta int64) error
}

// FollowerStore provides follower membership reads and writes.
type FollowerStore interface {
	UpsertFollower(ctx context.Context, f *model.Follower) error

	// ActiveFollowers returns the active membership of an organization.
	ActiveFollowers(ctx context.Context, orgID string) ([]*model.Follower, error)
}

// RecipientStore is the delivery address book.
type RecipientStore interface {
	UpsertRecipient(ctx context.Context, r *model.Recipient) error

	// PushToken returns the recipient's push token, empty when none is
	// registered.
	PushToken(ctx context.Context, recipientID string) (string, error)

	// EmailAddress returns the recipient's email address, empty when none
	// is registered.
	EmailAddress(ctx context.Context, recipientID string) (string, error)
}

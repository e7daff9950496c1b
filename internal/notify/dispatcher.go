// Package notify delivers one notification per eligible recipient at
// fan-out time. Delivery is best-effort: one recipient's failure never
// aborts delivery to the rest, and no retries happen within a pass.
package notify

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/beaconhq/alert-pipeline/internal/model"
)

// ErrNoAddress is returned by a gateway when the recipient has no
// registered delivery address or token for that channel.
var ErrNoAddress = errors.New("no delivery address registered")

// DeliveryStatus classifies the outcome of one delivery attempt
type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "delivered"
	StatusSkipped   DeliveryStatus = "skipped"
	StatusFailed    DeliveryStatus = "failed"
)

// Outcome records what happened to one recipient during a fan-out pass.
type Outcome struct {
	RecipientID string         `json:"recipient_id"`
	Status      DeliveryStatus `json:"status"`
	Gateway     string         `json:"gateway,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

// Gateway sends one notification over a single channel.
type Gateway interface {
	// Name identifies the channel for logging and outcomes.
	Name() string

	// Send delivers the alert to the recipient. ErrNoAddress means the
	// recipient has no address on this channel; any other error is a
	// delivery failure.
	Send(ctx context.Context, recipientID string, alert *model.LiveAlert) error
}

// Dispatcher fans an alert out across recipients. Gateways are tried in
// registration order per recipient; the first gateway with an address
// for the recipient decides the outcome.
type Dispatcher struct {
	logger      *zap.Logger
	gateways    []Gateway
	maxInFlight int
}

// NewDispatcher creates a dispatcher. maxInFlight bounds concurrent
// deliveries; values below 1 mean sequential delivery.
func NewDispatcher(gateways []Gateway, maxInFlight int, logger *zap.Logger) *Dispatcher {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Dispatcher{
		logger:      logger.Named("dispatcher"),
		gateways:    gateways,
		maxInFlight: maxInFlight,
	}
}

// Dispatch attempts delivery to every recipient and returns one outcome
// per recipient. It never short-circuits on failure.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []string, alert *model.LiveAlert) []Outcome {
	outcomes := make([]Outcome, len(recipients))

	sem := make(chan struct{}, d.maxInFlight)
	var wg sync.WaitGroup
	for i, recipientID := range recipients {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, recipientID string) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = d.deliver(ctx, recipientID, alert)
		}(i, recipientID)
	}
	wg.Wait()

	var delivered, skipped, failed int
	for _, o := range outcomes {
		switch o.Status {
		case StatusDelivered:
			delivered++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}

	d.logger.Info("Fan-out completed",
		zap.String("alert_id", alert.ID),
		zap.String("organization_id", alert.OrganizationID),
		zap.Int("recipients", len(recipients)),
		zap.Int("delivered", delivered),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed))

	return outcomes
}

// deliver tries each gateway in order for one recipient. A gateway
// without an address for the recipient yields to the next one; a real
// send decides the outcome either way.
func (d *Dispatcher) deliver(ctx context.Context, recipientID string, alert *model.LiveAlert) Outcome {
	for _, gw := range d.gateways {
		err := gw.Send(ctx, recipientID, alert)
		if errors.Is(err, ErrNoAddress) {
			continue
		}
		if err != nil {
			d.logger.Warn("Delivery failed",
				zap.String("recipient_id", recipientID),
				zap.String("gateway", gw.Name()),
				zap.String("alert_id", alert.ID),
				zap.Error(err))
			return Outcome{
				RecipientID: recipientID,
				Status:      StatusFailed,
				Gateway:     gw.Name(),
				Reason:      err.Error(),
			}
		}
		return Outcome{
			RecipientID: recipientID,
			Status:      StatusDelivered,
			Gateway:     gw.Name(),
		}
	}

	return Outcome{
		RecipientID: recipientID,
		Status:      StatusSkipped,
		Reason:      ErrNoAddress.Error(),
	}
}

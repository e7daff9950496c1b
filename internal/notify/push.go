package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/beaconhq/alert-pipeline/internal/model"
)

const (
	notificationStreamName = "NOTIFICATIONS"
	pushSubject            = "notify.push"
)

// TokenSource resolves a recipient's push token. An empty token means
// the recipient has no registered device.
type TokenSource interface {
	PushToken(ctx context.Context, recipientID string) (string, error)
}

// PushGateway delivers push notifications by publishing them to a
// JetStream stream consumed by the platform push sender.
type PushGateway struct {
	logger *zap.Logger
	js     nats.JetStreamContext
	tokens TokenSource
}

// pushMessage is the wire payload handed to the push sender.
type pushMessage struct {
	Token            string    `json:"token"`
	AlertID          string    `json:"alert_id"`
	OrganizationID   string    `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	Title            string    `json:"title"`
	Body             string    `json:"body"`
	Severity         string    `json:"severity"`
	PostedAt         time.Time `json:"posted_at"`
}

// NewPushGateway creates the gateway and ensures the notification
// stream exists.
func NewPushGateway(js nats.JetStreamContext, tokens TokenSource, logger *zap.Logger) (*PushGateway, error) {
	g := &PushGateway{
		logger: logger.Named("push-gateway"),
		js:     js,
		tokens: tokens,
	}

	if err := g.setupStream(); err != nil {
		return nil, fmt.Errorf("failed to setup notification stream: %w", err)
	}
	return g, nil
}

func (g *PushGateway) setupStream() error {
	_, err := g.js.StreamInfo(notificationStreamName)
	if err == nil {
		g.logger.Info("Using existing notification stream", zap.String("name", notificationStreamName))
		return nil
	}
	if err != nats.ErrStreamNotFound {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	_, err = g.js.AddStream(&nats.StreamConfig{
		Name:     notificationStreamName,
		Subjects: []string{"notify.*"},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour,
		MaxMsgs:  -1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	g.logger.Info("Created notification stream", zap.String("name", notificationStreamName))
	return nil
}

// Name implements Gateway.Name
func (g *PushGateway) Name() string {
	return "push"
}

// Send implements Gateway.Send
func (g *PushGateway) Send(ctx context.Context, recipientID string, alert *model.LiveAlert) error {
	token, err := g.tokens.PushToken(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("failed to resolve push token: %w", err)
	}
	if token == "" {
		return ErrNoAddress
	}

	msg := pushMessage{
		Token:            token,
		AlertID:          alert.ID,
		OrganizationID:   alert.OrganizationID,
		OrganizationName: alert.OrganizationName,
		Title:            alert.Title,
		Body:             alert.Description,
		Severity:         string(alert.Severity),
		PostedAt:         alert.PostedAt,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}

	if _, err := g.js.Publish(pushSubject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish push message: %w", err)
	}

	return nil
}

package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/beaconhq/alert-pipeline/internal/model"
)

// AddressSource resolves a recipient's email address. An empty address
// means the recipient has none registered.
type AddressSource interface {
	EmailAddress(ctx context.Context, recipientID string) (string, error)
}

// EmailConfig holds SMTP settings for the email gateway.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailGateway delivers alert notifications over SMTP.
type EmailGateway struct {
	logger    *zap.Logger
	config    EmailConfig
	addresses AddressSource
}

// NewEmailGateway creates a new email gateway.
func NewEmailGateway(config EmailConfig, addresses AddressSource, logger *zap.Logger) *EmailGateway {
	return &EmailGateway{
		logger:    logger.Named("email-gateway"),
		config:    config,
		addresses: addresses,
	}
}

// Name implements Gateway.Name
func (g *EmailGateway) Name() string {
	return "email"
}

// Send implements Gateway.Send
func (g *EmailGateway) Send(ctx context.Context, recipientID string, alert *model.LiveAlert) error {
	address, err := g.addresses.EmailAddress(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("failed to resolve email address: %w", err)
	}
	if address == "" {
		return ErrNoAddress
	}

	auth := smtp.PlainAuth("",
		g.config.Username,
		g.config.Password,
		g.config.Host)

	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: [%s] %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n",
		g.config.From,
		address,
		alert.OrganizationName,
		alert.Title,
		alert.Description)

	addr := fmt.Sprintf("%s:%d", g.config.Host, g.config.Port)
	if err := smtp.SendMail(addr, auth, g.config.From, []string{address}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

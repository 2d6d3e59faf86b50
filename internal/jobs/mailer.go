// Package jobs contains the built-in queue job handlers registered at startup.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursekit/admin-api/config"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers outbound email on behalf of job handlers.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

const defaultSendDelay = 2 * time.Second

// SimulatedMailer pretends to deliver mail after a fixed delay. Real SMTP
// delivery is not wired yet; this keeps the welcome-email job observable
// end to end in dev and staging.
type SimulatedMailer struct {
	from   string
	host   string
	port   int
	delay  time.Duration
	logger *slog.Logger
}

// NewSimulatedMailer constructs a SimulatedMailer from SMTP configuration.
func NewSimulatedMailer(cfg config.MailerConfig, logger *slog.Logger) *SimulatedMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulatedMailer{
		from:   cfg.From,
		host:   cfg.Host,
		port:   cfg.Port,
		delay:  defaultSendDelay,
		logger: logger.With("component", "mailer"),
	}
}

// WithDelay overrides the simulated delivery delay. Useful in tests.
func (m *SimulatedMailer) WithDelay(d time.Duration) *SimulatedMailer {
	m.delay = d
	return m
}

// Send simulates SMTP delivery, honoring context cancellation during the delay.
func (m *SimulatedMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("recipient address is required")
	}

	m.logger.InfoContext(ctx, "sending email",
		"to", msg.To, "subject", msg.Subject, "smtp", fmt.Sprintf("%s:%d", m.host, m.port))

	timer := time.NewTimer(m.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("send to %s: %w", msg.To, ctx.Err())
	case <-timer.C:
	}

	m.logger.InfoContext(ctx, "email sent", "to", msg.To, "from", m.from)
	return nil
}

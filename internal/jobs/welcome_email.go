package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/coursekit/admin-api/internal/domain/model"
	"github.com/coursekit/admin-api/internal/queue"
)

// WelcomeEmailJobName is the queue name for the new-user welcome email.
const WelcomeEmailJobName = "send-welcome-email"

// welcomeEmailPayload is the expected job data for send-welcome-email.
type welcomeEmailPayload struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// NewWelcomeEmailHandler returns the handler for the send-welcome-email job.
// Any returned error surfaces as the record's fail reason.
func NewWelcomeEmailHandler(mailer Mailer, logger *slog.Logger) queue.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("job", WelcomeEmailJobName)

	return func(ctx context.Context, job *model.Job) error {
		var payload welcomeEmailPayload
		if err := json.Unmarshal(job.Data, &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		if payload.Email == "" {
			return fmt.Errorf("payload email is required")
		}

		log.InfoContext(ctx, "sending welcome email", "job_id", job.ID, "email", payload.Email, "username", payload.Username)

		msg := Message{
			To:      payload.Email,
			Subject: "Welcome to CourseKit",
			Body:    fmt.Sprintf("Hi %s, your account is ready.", payload.Username),
		}
		if err := mailer.Send(ctx, msg); err != nil {
			return fmt.Errorf("send welcome email: %w", err)
		}

		log.InfoContext(ctx, "welcome email sent", "job_id", job.ID, "email", payload.Email)
		return nil
	}
}

// Register defines all built-in job handlers on the registry.
func Register(registry *queue.Registry, mailer Mailer, logger *slog.Logger) {
	registry.Define(WelcomeEmailJobName, NewWelcomeEmailHandler(mailer, logger),
		queue.WithConcurrency(3))
}

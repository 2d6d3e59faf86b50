package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursekit/admin-api/config"
	"github.com/coursekit/admin-api/internal/domain/model"
	"github.com/coursekit/admin-api/internal/queue"
)

type recordingMailer struct {
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func welcomeJob(data string) *model.Job {
	return &model.Job{
		ID:   uuid.NewString(),
		Name: WelcomeEmailJobName,
		Data: json.RawMessage(data),
	}
}

func TestWelcomeEmailHandler_Sends(t *testing.T) {
	mailer := &recordingMailer{}
	handler := NewWelcomeEmailHandler(mailer, discardLogger())

	err := handler(context.Background(), welcomeJob(`{"email":"new@user.io","username":"newbie"}`))

	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "new@user.io", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Body, "newbie")
}

func TestWelcomeEmailHandler_MissingEmail(t *testing.T) {
	mailer := &recordingMailer{}
	handler := NewWelcomeEmailHandler(mailer, discardLogger())

	err := handler(context.Background(), welcomeJob(`{"username":"newbie"}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "email is required")
	assert.Empty(t, mailer.sent)
}

func TestWelcomeEmailHandler_BadPayload(t *testing.T) {
	mailer := &recordingMailer{}
	handler := NewWelcomeEmailHandler(mailer, discardLogger())

	err := handler(context.Background(), welcomeJob(`not-json`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode payload")
}

func TestWelcomeEmailHandler_MailerError(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp connect refused")}
	handler := NewWelcomeEmailHandler(mailer, discardLogger())

	err := handler(context.Background(), welcomeJob(`{"email":"new@user.io"}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp connect refused")
}

func TestRegister(t *testing.T) {
	registry := queue.NewRegistry(discardLogger())

	Register(registry, &recordingMailer{}, discardLogger())

	def, ok := registry.Lookup(WelcomeEmailJobName)
	require.True(t, ok)
	assert.Equal(t, 3, def.Concurrency)
}

func TestSimulatedMailer_Send(t *testing.T) {
	mailer := NewSimulatedMailer(config.MailerConfig{Host: "localhost", Port: 25, From: "no-reply@coursekit.local"}, discardLogger()).
		WithDelay(time.Millisecond)

	err := mailer.Send(context.Background(), Message{To: "new@user.io", Subject: "hi"})
	require.NoError(t, err)
}

func TestSimulatedMailer_ContextCancelled(t *testing.T) {
	mailer := NewSimulatedMailer(config.MailerConfig{}, discardLogger()).WithDelay(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := mailer.Send(ctx, Message{To: "new@user.io"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulatedMailer_MissingRecipient(t *testing.T) {
	mailer := NewSimulatedMailer(config.MailerConfig{}, discardLogger()).WithDelay(time.Millisecond)

	err := mailer.Send(context.Background(), Message{})
	require.Error(t, err)
}

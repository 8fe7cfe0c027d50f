package sms

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Log is an SMS implementation that only logs messages, used when no
// provider is configured.
type Log struct{}

// NewLog returns a logging SMS sender.
func NewLog() *Log {
	return &Log{}
}

// Send logs the recipient and returns a mock message id.
func (*Log) Send(ctx context.Context, msg Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}

	id := "mock_sms_" + uuid.NewString()
	slog.InfoContext(ctx, "sms not sent, provider is not configured", "message_id", id, "to", msg.To)

	return id, nil
}

// Close implements io.Closer.
func (*Log) Close() error {
	return nil
}

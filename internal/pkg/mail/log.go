package mail

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Log is a Mail implementation that only logs messages. It is used when no
// SMTP server is configured so local environments keep working.
type Log struct{}

// NewLog returns a logging mailer.
func NewLog() *Log {
	return &Log{}
}

// Send logs the message envelope and returns a mock message id.
func (*Log) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(msg.To) == 0 {
		return "", ErrSMTPNoRecipients
	}

	id := "mock_email_" + uuid.NewString()
	slog.InfoContext(ctx, "email not sent, smtp is not configured",
		"message_id", id,
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
	)

	return id, nil
}

// Close implements io.Closer.
func (*Log) Close() error {
	return nil
}

package mail

import (
	"context"
	"errors"
	"io"
)

var (
	ErrSMTPHostPortRequired = errors.New("smtp host and port are required")
	ErrSMTPNoRecipients     = errors.New("no recipients provided")
	ErrSMTPNoSender         = errors.New("no sender provided")
)

// Message is one email. When both bodies are set it is sent as
// multipart/alternative.
type Message struct {
	// From overrides the configured sender.
	From     string
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mail sends email and returns the provider message id.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) (string, error)
}

// Package sms sends text messages through an HTTP provider.
package sms

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrRecipientRequired is returned when Message.To is empty.
	ErrRecipientRequired = errors.New("sms: recipient is required")
	// ErrTextRequired is returned when Message.Text is empty.
	ErrTextRequired = errors.New("sms: text is required")
)

// Message is a text message to a phone number in E.164 format.
type Message struct {
	To   string
	Text string
}

// SMS abstracts a text message provider.
type SMS interface {
	io.Closer
	// Send dispatches the message and returns the provider message id.
	Send(ctx context.Context, msg Message) (string, error)
}

func validate(msg Message) error {
	if msg.To == "" {
		return ErrRecipientRequired
	}
	if msg.Text == "" {
		return ErrTextRequired
	}
	return nil
}

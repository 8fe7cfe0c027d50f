package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrEndpointRequired is returned when HTTPConfig.Endpoint is empty.
var ErrEndpointRequired = errors.New("sms: provider endpoint is required")

// HTTPConfig configures the HTTP provider client.
type HTTPConfig struct {
	// Endpoint is the provider URL receiving POST requests.
	Endpoint string
	// APIKey is sent as a bearer token.
	APIKey string
	// Sender is the sender id or number.
	Sender string
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// MaxRetries bounds retries of transient failures.
	MaxRetries uint64
	// Client overrides the HTTP client.
	Client *http.Client
}

// HTTP sends messages as JSON to a provider endpoint.
//
// Request:  {"from": "...", "to": "+15551234567", "text": "..."}
// Response: {"id": "provider-message-id"}
type HTTP struct {
	endpoint   string
	apiKey     string
	sender     string
	maxRetries uint64
	client     *http.Client
}

type sendRequest struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	Text string `json:"text"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// NewHTTP constructs a provider client.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.Endpoint == "" {
		return nil, ErrEndpointRequired
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTP{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		sender:     cfg.Sender,
		maxRetries: cfg.MaxRetries,
		client:     client,
	}, nil
}

// Send posts the message, retrying network errors, 429 and 5xx responses
// with capped exponential backoff.
func (h *HTTP) Send(ctx context.Context, msg Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}

	payload, err := json.Marshal(sendRequest{From: h.sender, To: msg.To, Text: msg.Text})
	if err != nil {
		return "", err
	}

	b := retry.NewExponential(200 * time.Millisecond)
	b = retry.WithCappedDuration(2*time.Second, b)
	b = retry.WithMaxRetries(h.maxRetries, b)

	var id string
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		var attemptErr error
		id, attemptErr = h.post(ctx, payload)
		return attemptErr
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

func (h *HTTP) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", retry.RetryableError(fmt.Errorf("sms: request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", retry.RetryableError(fmt.Errorf("sms: read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", retry.RetryableError(fmt.Errorf("sms: provider status %d", resp.StatusCode))
	case resp.StatusCode >= 300:
		return "", fmt.Errorf("sms: provider status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out sendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("sms: decode response: %w", err)
	}

	return out.ID, nil
}

// Close implements io.Closer.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

package sms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestHTTPSend(t *testing.T) {
	t.Parallel()

	// Arrange
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key-1" {
			t.Errorf("missing bearer key")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"id":"sm-42"}`))
	}))
	defer srv.Close()

	client, err := NewHTTP(HTTPConfig{Endpoint: srv.URL, APIKey: "key-1", Sender: "OTPGATE"})
	if err != nil {
		t.Fatalf("new http: %v", err)
	}

	// Act
	id, err := client.Send(context.Background(), Message{To: "+15551234567", Text: "code 123456"})

	// Assert
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "sm-42" {
		t.Fatalf("expected sm-42, got %q", id)
	}
	if got.To != "+15551234567" || got.From != "OTPGATE" || got.Text != "code 123456" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestHTTPSendRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"sm-1"}`))
	}))
	defer srv.Close()

	client, err := NewHTTP(HTTPConfig{Endpoint: srv.URL, MaxRetries: 3})
	if err != nil {
		t.Fatalf("new http: %v", err)
	}

	id, err := client.Send(context.Background(), Message{To: "+15551234567", Text: "hi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "sm-1" || calls.Load() != 3 {
		t.Fatalf("expected success on third call, got id=%q calls=%d", id, calls.Load())
	}
}

func TestHTTPSendDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`invalid number`))
	}))
	defer srv.Close()

	client, err := NewHTTP(HTTPConfig{Endpoint: srv.URL, MaxRetries: 3})
	if err != nil {
		t.Fatalf("new http: %v", err)
	}

	_, err = client.Send(context.Background(), Message{To: "+15551234567", Text: "hi"})
	if err == nil || !strings.Contains(err.Error(), "invalid number") {
		t.Fatalf("expected provider error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestSendValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewHTTP(HTTPConfig{}); !errors.Is(err, ErrEndpointRequired) {
		t.Fatalf("expected ErrEndpointRequired, got %v", err)
	}
	if _, err := NewLog().Send(context.Background(), Message{Text: "x"}); !errors.Is(err, ErrRecipientRequired) {
		t.Fatalf("expected ErrRecipientRequired, got %v", err)
	}
	if _, err := NewLog().Send(context.Background(), Message{To: "+1555"}); !errors.Is(err, ErrTextRequired) {
		t.Fatalf("expected ErrTextRequired, got %v", err)
	}

	id, err := NewLog().Send(context.Background(), Message{To: "+15551234567", Text: "x"})
	if err != nil || !strings.HasPrefix(id, "mock_sms_") {
		t.Fatalf("unexpected mock result id=%q err=%v", id, err)
	}
}

package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUnderMaintenance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []string
		method  string
		route   string
		want    bool
	}{
		{name: "empty", entries: nil, method: http.MethodPost, route: "/api/v1/identity/otp/send", want: false},
		{name: "route match", entries: []string{"/api/v1/identity/otp/send"}, method: http.MethodPost, route: "/api/v1/identity/otp/send", want: true},
		{name: "method match", entries: []string{"post /api/v1/identity/otp/send"}, method: http.MethodPost, route: "/api/v1/identity/otp/send", want: true},
		{name: "method mismatch", entries: []string{"GET /api/v1/identity/otp/send"}, method: http.MethodPost, route: "/api/v1/identity/otp/send", want: false},
		{name: "wildcard", entries: []string{"*"}, method: http.MethodGet, route: "/api/v1/identity/profile", want: true},
		{name: "wildcard spares health", entries: []string{"*"}, method: http.MethodGet, route: "/health", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := underMaintenance(tt.entries, tt.method, tt.route); got != tt.want {
				t.Fatalf("underMaintenance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		trust   bool
		want    string
	}{
		{name: "remote addr", remote: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "untrusted header ignored", remote: "10.0.0.1:5555", headers: map[string]string{"X-Forwarded-For": "1.2.3.4"}, want: "10.0.0.1"},
		{name: "trusted forwarded for", remote: "10.0.0.1:5555", headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.2"}, trust: true, want: "1.2.3.4"},
		{name: "trusted real ip wins", remote: "10.0.0.1:5555", headers: map[string]string{"X-Real-IP": "5.6.7.8", "X-Forwarded-For": "1.2.3.4"}, trust: true, want: "5.6.7.8"},
		{name: "garbage header falls back", remote: "[::1]:80", headers: map[string]string{"X-Real-IP": "nope"}, trust: true, want: "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			if got := clientIP(req, tt.trust).String(); got != tt.want {
				t.Fatalf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeCID(t *testing.T) {
	t.Parallel()

	if got := sanitizeCID("  abc-123 "); got != "abc-123" {
		t.Fatalf("sanitizeCID() = %q", got)
	}
	if got := sanitizeCID("bad\r\nheader"); got != "" {
		t.Fatalf("sanitizeCID() = %q, want empty", got)
	}
}

func TestRecovererWritesEnvelope(t *testing.T) {
	t.Parallel()

	h := middlewareRecoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := rec.Body.String(); body != "{\"message\":\"Internal server error\"}\n" {
		t.Fatalf("body = %q", body)
	}
}

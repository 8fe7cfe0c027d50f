package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/notification/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/sms"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

type fakeMail struct {
	sent []mail.Message
	err  error
}

func (f *fakeMail) Send(_ context.Context, msg mail.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "mail-1", nil
}

type fakeSMS struct {
	sent []sms.Message
}

func (f *fakeSMS) Send(_ context.Context, msg sms.Message) (string, error) {
	f.sent = append(f.sent, msg)
	return "sms-1", nil
}

// memIdempotency mirrors the redis tracker: completed keys are skipped and a
// failing operation releases its key.
type memIdempotency struct {
	mu   sync.Mutex
	done map[string]bool
}

func (m *memIdempotency) Acquire(context.Context, string, time.Duration) (idempotency.State, error) {
	return idempotency.StateNone, nil
}

func (m *memIdempotency) MarkCompleted(_ context.Context, key string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done[key] = true
	return nil
}

func (m *memIdempotency) Release(context.Context, string) error { return nil }

func (m *memIdempotency) Exec(ctx context.Context, key string, fn func(context.Context) error, _ ...idempotency.Option) error {
	m.mu.Lock()
	if m.done[key] {
		m.mu.Unlock()
		return idempotency.ErrAlreadyCompleted
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		return err
	}
	return m.MarkCompleted(ctx, key, 0)
}

type harness struct {
	uc   *Usecase
	mail *fakeMail
	sms  *fakeSMS
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(`
app:
  name: otpgate
modules:
  identity:
    otp:
      ttl_minutes: 5
`))
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	h := &harness{mail: &fakeMail{}, sms: &fakeSMS{}}
	h.uc = NewNotification(Dependency{
		RepoMail:    h.mail,
		RepoSMS:     h.sms,
		Idempotency: &memIdempotency{done: map[string]bool{}},
		Config:      cfg,
		Clock:       clock.Fixed(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		Validator:   v,
		Instrument:  instrument.NewNoop(),
	})

	return h
}

func TestDeliverEmailLoginCode(t *testing.T) {
	t.Parallel()

	// Arrange
	h := newHarness(t)

	// Act
	receipt, err := h.uc.Deliver(context.Background(), DeliverInput{
		DeliveryID: "d-1",
		Identifier: "user@example.com",
		Channel:    "email",
		UseCase:    "login_code",
		Code:       "482913",
	})

	// Assert
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if receipt.Status != entity.DeliveryStatusSent || receipt.ProviderMessageID != "mail-1" {
		t.Fatalf("receipt = %+v", receipt)
	}
	if len(h.mail.sent) != 1 {
		t.Fatalf("mails sent = %d, want 1", len(h.mail.sent))
	}
	msg := h.mail.sent[0]
	if msg.Subject != "Your Login OTP - Secure Access" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.TextBody, "482913") || !strings.Contains(msg.TextBody, "5 minutes") {
		t.Fatalf("text body = %q", msg.TextBody)
	}
	if !strings.Contains(msg.HTMLBody, "482913") {
		t.Fatalf("html body missing code")
	}
}

func TestDeliverSMSChannels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		useCase  string
		code     string
		userName string
		want     string
	}{
		{name: "login", useCase: "login_code", code: "111111", want: "Your secure login OTP: 111111"},
		{name: "reset", useCase: "reset_code", code: "222222", want: "Password reset OTP: 222222"},
		{name: "welcome", useCase: "welcome", userName: "Alice", want: "Welcome Alice!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)

			_, err := h.uc.Deliver(context.Background(), DeliverInput{
				DeliveryID: "d-" + tt.name,
				Identifier: "+14155550100",
				Channel:    "phone",
				UseCase:    tt.useCase,
				Code:       tt.code,
				Name:       tt.userName,
			})

			if err != nil {
				t.Fatalf("Deliver() error = %v", err)
			}
			if len(h.sms.sent) != 1 || len(h.mail.sent) != 0 {
				t.Fatalf("sms sent = %d, mail sent = %d", len(h.sms.sent), len(h.mail.sent))
			}
			if !strings.HasPrefix(h.sms.sent[0].Text, tt.want) {
				t.Fatalf("text = %q, want prefix %q", h.sms.sent[0].Text, tt.want)
			}
		})
	}
}

func TestDeliverWelcomeEscapesName(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.uc.Deliver(context.Background(), DeliverInput{
		DeliveryID: "d-1",
		Identifier: "user@example.com",
		Channel:    "email",
		UseCase:    "welcome",
		Name:       "<script>x</script>",
	})

	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if strings.Contains(h.mail.sent[0].HTMLBody, "<script>") {
		t.Fatalf("name was not escaped in html body")
	}
}

func TestDeliverDuplicate(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	in := DeliverInput{DeliveryID: "d-1", Identifier: "user@example.com", Channel: "email", UseCase: "login_code", Code: "482913"}

	if _, err := h.uc.Deliver(context.Background(), in); err != nil {
		t.Fatalf("first Deliver() error = %v", err)
	}
	receipt, err := h.uc.Deliver(context.Background(), in)
	if err != nil {
		t.Fatalf("second Deliver() error = %v", err)
	}
	if receipt.Status != entity.DeliveryStatusDuplicate {
		t.Fatalf("status = %v, want duplicate", receipt.Status)
	}
	if len(h.mail.sent) != 1 {
		t.Fatalf("mails sent = %d, want 1", len(h.mail.sent))
	}
}

func TestDeliverFailureCanRetry(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.mail.err = errors.New("smtp down")
	in := DeliverInput{DeliveryID: "d-1", Identifier: "user@example.com", Channel: "email", UseCase: "reset_code", Code: "482913"}

	_, err := h.uc.Deliver(context.Background(), in)
	var gerr *goerror.Error
	if !errors.As(err, &gerr) || gerr.Type() != goerror.TypeServer {
		t.Fatalf("Deliver() error = %v, want server error", err)
	}

	h.mail.err = nil
	if _, err := h.uc.Deliver(context.Background(), in); err != nil {
		t.Fatalf("retry Deliver() error = %v", err)
	}
	if len(h.mail.sent) != 1 {
		t.Fatalf("mails sent = %d, want 1", len(h.mail.sent))
	}
}

func TestDeliverValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   DeliverInput
	}{
		{name: "missing delivery id", in: DeliverInput{Identifier: "user@example.com", Channel: "email", UseCase: "login_code", Code: "1"}},
		{name: "unknown channel", in: DeliverInput{DeliveryID: "d", Identifier: "user@example.com", Channel: "fax", UseCase: "login_code", Code: "1"}},
		{name: "unknown use case", in: DeliverInput{DeliveryID: "d", Identifier: "user@example.com", Channel: "email", UseCase: "promo"}},
		{name: "code missing", in: DeliverInput{DeliveryID: "d", Identifier: "user@example.com", Channel: "email", UseCase: "login_code"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)

			_, err := h.uc.Deliver(context.Background(), tt.in)

			var gerr *goerror.Error
			if !errors.As(err, &gerr) || gerr.Type() != goerror.TypeValidation {
				t.Fatalf("Deliver() error = %v, want validation error", err)
			}
			if len(h.mail.sent)+len(h.sms.sent) != 0 {
				t.Fatalf("message sent despite invalid input")
			}
		})
	}
}

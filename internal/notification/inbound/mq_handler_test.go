package inbound

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/notification/entity"
	"github.com/shandysiswandi/otpgate/internal/notification/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
)

type fakeMessage struct {
	body    []byte
	headers []messaging.Header
}

func (m fakeMessage) Body() []byte                { return m.body }
func (m fakeMessage) Key() []byte                 { return nil }
func (m fakeMessage) Headers() []messaging.Header { return m.headers }
func (m fakeMessage) ID() string                  { return "msg-1" }
func (m fakeMessage) Topic() string               { return "otp.dispatch" }
func (m fakeMessage) Timestamp() time.Time        { return time.Time{} }
func (m fakeMessage) Ack(context.Context) error   { return nil }
func (m fakeMessage) Nack(context.Context) error  { return nil }

type fakeUC struct {
	got  []usecase.DeliverInput
	cIDs []string
	err  error
}

func (f *fakeUC) Deliver(ctx context.Context, in usecase.DeliverInput) (*entity.Receipt, error) {
	f.got = append(f.got, in)
	f.cIDs = append(f.cIDs, instrument.GetCorrelationID(ctx))
	if f.err != nil {
		return nil, f.err
	}
	return &entity.Receipt{DeliveryID: in.DeliveryID, Status: entity.DeliveryStatusSent}, nil
}

type fixedUUID struct{}

func (fixedUUID) Generate() string { return "generated-cid" }

func TestOTPDispatchNotification(t *testing.T) {
	t.Parallel()

	validBody := []byte(`{"delivery_id":"d-1","identifier":"user@example.com","channel":"email","use_case":"login_code","code":"482913"}`)

	tests := []struct {
		name    string
		body    []byte
		headers []messaging.Header
		ucErr   error
		wantErr bool
		calls   int
		wantCID string
	}{
		{
			name:    "success with correlation header",
			body:    validBody,
			headers: []messaging.Header{{Key: "cID", Value: []byte("abc")}},
			calls:   1,
			wantCID: "abc",
		},
		{
			name:    "success without header generates id",
			body:    validBody,
			calls:   1,
			wantCID: "generated-cid",
		},
		{
			name:  "malformed body is acked",
			body:  []byte(`{not json`),
			calls: 0,
		},
		{
			name:  "validation error is dropped",
			body:  validBody,
			ucErr: goerror.NewInvalidInput(nil, "code", "code is required"),
			calls: 1,
		},
		{
			name:    "delivery failure is nacked",
			body:    validBody,
			ucErr:   goerror.NewServer(errors.New("smtp down")),
			wantErr: true,
			calls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			uc := &fakeUC{err: tt.ucErr}
			h := &MQHandler{uc: uc, uuid: fixedUUID{}, ins: instrument.NewNoop()}

			// Act
			err := h.OTPDispatchNotification(context.Background(), fakeMessage{body: tt.body, headers: tt.headers})

			// Assert
			if (err != nil) != tt.wantErr {
				t.Fatalf("OTPDispatchNotification() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(uc.got) != tt.calls {
				t.Fatalf("Deliver calls = %d, want %d", len(uc.got), tt.calls)
			}
			if tt.calls == 0 {
				return
			}
			in := uc.got[0]
			if in.DeliveryID != "d-1" || in.Code != "482913" || in.Channel != "email" || in.UseCase != "login_code" {
				t.Fatalf("input = %+v", in)
			}
			if tt.wantCID != "" && uc.cIDs[0] != tt.wantCID {
				t.Fatalf("correlation id = %q, want %q", uc.cIDs[0], tt.wantCID)
			}
		})
	}
}

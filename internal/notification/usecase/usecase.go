package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/sms"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var errUnknownTrigger = errors.New("notification: unknown trigger key")

type repoMail interface {
	Send(ctx context.Context, msg mail.Message) (string, error)
}

type repoSMS interface {
	Send(ctx context.Context, msg sms.Message) (string, error)
}

type Usecase struct {
	repoMail    repoMail
	repoSMS     repoSMS
	idempotency idempotency.Idempotency
	cfg         config.Config
	clock       clock.Clocker
	validator   validator.Validator
	ins         instrument.Instrumentation
	sentCounter metric.Int64Counter
}

type Dependency struct {
	RepoMail    repoMail
	RepoSMS     repoSMS
	Idempotency idempotency.Idempotency
	Config      config.Config
	Clock       clock.Clocker
	Validator   validator.Validator
	Instrument  instrument.Instrumentation
}

func NewNotification(dep Dependency) *Usecase {
	uc := &Usecase{
		repoMail:    dep.RepoMail,
		repoSMS:     dep.RepoSMS,
		idempotency: dep.Idempotency,
		cfg:         dep.Config,
		clock:       dep.Clock,
		validator:   dep.Validator,
		ins:         dep.Instrument,
	}

	counter, err := dep.Instrument.Meter("notification.usecase").Int64Counter(
		"notification.delivery",
		metric.WithDescription("Deliveries by channel, trigger and status"),
	)
	if err != nil {
		slog.Warn("failed to create delivery counter", "error", err)
	} else {
		uc.sentCounter = counter
	}

	return uc
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.usecase").Start(ctx, name)
}

func (s *Usecase) countDelivery(ctx context.Context, channel, trigger, status string) {
	if s.sentCounter == nil {
		return
	}
	s.sentCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("trigger", trigger),
		attribute.String("status", status),
	))
}

func (s *Usecase) templateData() map[string]any {
	ttl := s.cfg.GetInt("modules.identity.otp.ttl_minutes")
	if ttl <= 0 {
		ttl = 5
	}

	appName := s.cfg.GetString("app.name")
	if appName == "" {
		appName = "otpgate"
	}

	return map[string]any{
		"ttl_minutes": ttl,
		"app_name":    appName,
		"year":        s.clock.Now().Format("2006"),
	}
}

func (s *Usecase) dedupeTTL() time.Duration {
	if ttl := s.cfg.GetMinute("modules.notification.dedupe_ttl_minutes"); ttl > 0 {
		return ttl
	}
	return 24 * time.Hour
}

func invalid(field, msg string) error {
	return goerror.NewInvalidInput(nil, field, msg)
}

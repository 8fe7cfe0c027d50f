// Package email sends rendered notification emails through a mail.Mail
// provider and records delivery telemetry.
package email

import (
	"context"
	"strings"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scope = "notification.outbound.email"

type Mail struct {
	client   mail.Mail
	tracer   trace.Tracer
	sent     metric.Int64Counter
	duration metric.Float64Histogram
}

func New(client mail.Mail, ins instrument.Instrumentation) *Mail {
	meter := ins.Meter(scope)
	// instrument creation only fails on invalid names
	sent, _ := meter.Int64Counter("notification.email.sent",
		metric.WithDescription("Emails handed to the provider, by outcome"))
	duration, _ := meter.Float64Histogram("notification.email.duration",
		metric.WithUnit("s"), metric.WithDescription("Provider send latency"))

	return &Mail{client: client, tracer: ins.Tracer(scope), sent: sent, duration: duration}
}

func (m *Mail) Send(ctx context.Context, msg mail.Message) (string, error) {
	ctx, span := m.tracer.Start(ctx, "Send")
	defer span.End()

	span.SetAttributes(
		attribute.Int("mail.recipients", len(msg.To)),
		attribute.String("mail.domain", recipientDomain(msg.To)),
	)

	start := time.Now()
	id, err := m.client.Send(ctx, msg)

	outcome := attribute.String("outcome", "ok")
	if err != nil {
		outcome = attribute.String("outcome", "error")
	}
	m.sent.Add(ctx, 1, metric.WithAttributes(outcome))
	m.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("mail.message_id", id))

	return id, nil
}

// recipientDomain keeps the domain of the first recipient; local parts are
// personal data.
func recipientDomain(to []string) string {
	if len(to) == 0 {
		return ""
	}
	_, domain, ok := strings.Cut(to[0], "@")
	if !ok {
		return ""
	}
	return strings.ToLower(domain)
}

// Package sms sends rendered notification texts through an sms.SMS provider
// and records delivery telemetry.
package sms

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/sms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scope = "notification.outbound.sms"

type SMS struct {
	client   sms.SMS
	tracer   trace.Tracer
	sent     metric.Int64Counter
	segments metric.Int64Counter
	duration metric.Float64Histogram
}

func New(client sms.SMS, ins instrument.Instrumentation) *SMS {
	meter := ins.Meter(scope)
	sent, _ := meter.Int64Counter("notification.sms.sent",
		metric.WithDescription("Texts handed to the provider, by outcome"))
	segments, _ := meter.Int64Counter("notification.sms.segments",
		metric.WithDescription("Billable segments of delivered texts"))
	duration, _ := meter.Float64Histogram("notification.sms.duration",
		metric.WithUnit("s"), metric.WithDescription("Provider send latency"))

	return &SMS{client: client, tracer: ins.Tracer(scope), sent: sent, segments: segments, duration: duration}
}

func (s *SMS) Send(ctx context.Context, msg sms.Message) (string, error) {
	ctx, span := s.tracer.Start(ctx, "Send")
	defer span.End()

	parts := Segments(msg.Text)
	span.SetAttributes(
		attribute.String("sms.to", maskPhone(msg.To)),
		attribute.Int("sms.segments", parts),
	)

	start := time.Now()
	id, err := s.client.Send(ctx, msg)

	outcome := attribute.String("outcome", "ok")
	if err != nil {
		outcome = attribute.String("outcome", "error")
	}
	s.sent.Add(ctx, 1, metric.WithAttributes(outcome))
	s.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	s.segments.Add(ctx, int64(parts))
	span.SetAttributes(attribute.String("sms.message_id", id))

	return id, nil
}

// Segments estimates how many messages a carrier bills for text. Anything
// outside ASCII forces UCS-2, which shrinks a segment from 160 to 70
// characters, and multipart messages lose room to the concatenation header.
func Segments(text string) int {
	n, single, multi := 0, 160, 153
	for _, r := range text {
		n++
		if r > 0x7f {
			single, multi = 70, 67
		}
	}

	switch {
	case n == 0:
		return 0
	case n <= single:
		return 1
	default:
		return (n + multi - 1) / multi
	}
}

// maskPhone keeps the last four digits.
func maskPhone(to string) string {
	if len(to) <= 4 {
		return "****"
	}
	return "****" + to[len(to)-4:]
}

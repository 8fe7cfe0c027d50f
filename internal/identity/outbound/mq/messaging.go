package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/otpgate/internal/identity/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Publisher
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

// PublishOTPDispatch keys the message by identifier so deliveries to one
// recipient keep their order on partitioned brokers.
func (m *Messaging) PublishOTPDispatch(ctx context.Context, d entity.Dispatch, deliveryID string) error {
	ctx, span := m.ins.Tracer("identity.outbound.mq").Start(ctx, "PublishOTPDispatch")
	defer span.End()

	body, err := json.Marshal(event.OTPDispatchMessage{
		DeliveryID: deliveryID,
		Identifier: d.Identifier,
		Channel:    d.Channel.String(),
		UseCase:    string(d.UseCase),
		Code:       d.Code,
		Name:       d.Name,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, event.OTPDispatchDestination, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(d.Identifier),
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

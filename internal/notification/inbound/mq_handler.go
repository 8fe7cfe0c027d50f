package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/notification/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, msg messaging.Message) context.Context {
	if cID := messaging.HeaderValue(msg, keyOfCorrelationID); cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// OTPDispatchNotification acks malformed and invalid messages so they are not
// redelivered forever; delivery failures are nacked.
func (h *MQHandler) OTPDispatchNotification(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "OTPDispatchNotification")
	defer span.End()

	var payload event.OTPDispatchMessage
	if err := json.Unmarshal(msg.Body(), &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of otp dispatch", "msg_id", msg.ID(), "error", err)
		return nil
	}

	// the body carries the code, so only the envelope is logged
	slog.InfoContext(ctx, "consume: otp dispatch",
		"msg_id", msg.ID(),
		"delivery_id", payload.DeliveryID,
		"channel", payload.Channel,
		"use_case", payload.UseCase,
	)

	_, err := h.uc.Deliver(ctx, usecase.DeliverInput{
		DeliveryID: payload.DeliveryID,
		Identifier: payload.Identifier,
		Channel:    payload.Channel,
		UseCase:    payload.UseCase,
		Code:       payload.Code,
		Name:       payload.Name,
	})

	var gerr *goerror.Error
	if errors.As(err, &gerr) && gerr.Type() == goerror.TypeValidation {
		slog.WarnContext(ctx, "drop invalid otp dispatch", "delivery_id", payload.DeliveryID, "error", err)
		return nil
	}
	if err != nil {
		return err
	}

	return nil
}

package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/notification/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/sms"
)

type DeliverInput struct {
	DeliveryID string `validate:"required"`
	Identifier string `validate:"required"`
	Channel    string `validate:"required,oneof=email phone sms"`
	UseCase    string `validate:"required,oneof=login_code reset_code welcome"`
	Code       string
	Name       string
}

// Deliver renders and sends one dispatch. A delivery id that was already sent
// is reported as a duplicate and not sent again.
func (s *Usecase) Deliver(ctx context.Context, in DeliverInput) (*entity.Receipt, error) {
	ctx, span := s.startSpan(ctx, "Deliver")
	defer span.End()

	in.Identifier = strings.TrimSpace(in.Identifier)
	in.Channel = strings.ToLower(strings.TrimSpace(in.Channel))

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	d := entity.Delivery{
		ID:         in.DeliveryID,
		Channel:    entity.ChannelFromString(in.Channel),
		Recipient:  in.Identifier,
		TriggerKey: entity.TriggerKey(in.UseCase),
		Code:       in.Code,
		Name:       in.Name,
	}
	if d.TriggerKey.NeedsCode() && d.Code == "" {
		return nil, invalid("code", "code is required")
	}

	data := s.templateData()
	data["code"] = d.Code
	data["name"] = d.Name
	if d.Name == "" {
		data["name"] = "there"
	}

	content, err := render(d.TriggerKey, d.Channel, data)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render notification", "delivery_id", d.ID, "trigger_key", d.TriggerKey.String(), "error", err)
		return nil, goerror.NewServer(err)
	}

	receipt := &entity.Receipt{DeliveryID: d.ID}
	err = s.idempotency.Exec(ctx, "notification:delivery:"+d.ID, func(ctx context.Context) error {
		id, err := s.send(ctx, d, content)
		if err != nil {
			return err
		}
		receipt.ProviderMessageID = id
		receipt.Status = entity.DeliveryStatusSent
		return nil
	}, idempotency.WithStateTTL(s.dedupeTTL()))

	switch {
	case errors.Is(err, idempotency.ErrAlreadyCompleted), errors.Is(err, idempotency.ErrAlreadyInProgress):
		slog.InfoContext(ctx, "skip duplicate delivery", "delivery_id", d.ID)
		receipt.Status = entity.DeliveryStatusDuplicate
		s.countDelivery(ctx, d.Channel.String(), d.TriggerKey.String(), receipt.Status.String())
		return receipt, nil
	case err != nil:
		slog.ErrorContext(ctx, "failed to deliver notification", "delivery_id", d.ID, "channel", d.Channel.String(), "trigger_key", d.TriggerKey.String(), "error", err)
		s.countDelivery(ctx, d.Channel.String(), d.TriggerKey.String(), "failed")
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "notification delivered", "delivery_id", d.ID, "channel", d.Channel.String(), "message_id", receipt.ProviderMessageID)
	s.countDelivery(ctx, d.Channel.String(), d.TriggerKey.String(), receipt.Status.String())

	return receipt, nil
}

func (s *Usecase) send(ctx context.Context, d entity.Delivery, c entity.Content) (string, error) {
	if d.Channel == entity.ChannelSMS {
		return s.repoSMS.Send(ctx, sms.Message{To: d.Recipient, Text: c.Text})
	}

	return s.repoMail.Send(ctx, mail.Message{
		To:       []string{d.Recipient},
		Subject:  c.Subject,
		TextBody: c.Text,
		HTMLBody: c.HTML,
	})
}

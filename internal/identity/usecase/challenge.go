package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/otpgate/internal/identity/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

var phoneNoise = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

type IssueChallengeInput struct {
	Identifier string `validate:"required"`
	Channel    string `validate:"required,oneof=email phone"`
}

type IssueChallengeOutput struct {
	Identifier     string
	Channel        entity.Channel
	ExpiresAt      time.Time
	DeliveryID     string
	DeliveryFailed bool
}

type VerifyChallengeInput struct {
	Identifier string `validate:"required"`
	Code       string `validate:"required,otpcode"`
}

type VerifyChallengeOutput struct {
	Identifier string
	Login      *LoginProgress
}

type emailIdentifier struct {
	Identifier string `validate:"required,email"`
}

type phoneIdentifier struct {
	Identifier string `validate:"required,e164"`
}

func normalizeIdentifier(ch entity.Channel, identifier string) string {
	identifier = strings.TrimSpace(identifier)
	switch ch {
	case entity.ChannelEmail:
		return strings.ToLower(identifier)
	case entity.ChannelPhone:
		return phoneNoise.Replace(identifier)
	default:
		return identifier
	}
}

func (s *Usecase) validateIdentifier(ch entity.Channel, identifier string) error {
	var v any
	switch ch {
	case entity.ChannelEmail:
		v = emailIdentifier{Identifier: identifier}
	case entity.ChannelPhone:
		v = phoneIdentifier{Identifier: identifier}
	default:
		return goerror.NewInvalidInput(nil, "channel", "channel must be one of [email phone]")
	}

	if err := s.validator.Validate(v); err != nil {
		return goerror.NewInvalidInput(err)
	}

	return nil
}

func (s *Usecase) IssueChallenge(ctx context.Context, in IssueChallengeInput) (*IssueChallengeOutput, error) {
	ctx, span := s.startSpan(ctx, "IssueChallenge")
	defer span.End()

	in.Channel = strings.ToLower(strings.TrimSpace(in.Channel))
	ch := entity.ChannelFromString(in.Channel)
	in.Identifier = normalizeIdentifier(ch, in.Identifier)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	if err := s.validateIdentifier(ch, in.Identifier); err != nil {
		return nil, err
	}

	return s.issueChallenge(ctx, in.Identifier, ch, entity.UseCaseLoginCode)
}

func (s *Usecase) issueChallenge(ctx context.Context, identifier string, ch entity.Channel, uc entity.DispatchUseCase) (*IssueChallengeOutput, error) {
	now := s.clock.Now()
	windowStart := now.Add(-s.rateLimitWindow())

	exhausted, err := s.repoDB.CountExhaustedChallenges(ctx, identifier, windowStart)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo count exhausted challenges", "identifier", identifier, "error", err)
		return nil, goerror.NewServer(err)
	}

	if exhausted >= s.rateLimitMax() {
		slog.WarnContext(ctx, "otp issuance rate limited", "identifier", identifier, "exhausted", exhausted)
		return nil, errRateLimited
	}

	chal := entity.NewChallenge(identifier, s.otp.Generate(), now, s.challengeTTL())
	if err := s.repoDB.UpsertChallenge(ctx, chal, windowStart); err != nil {
		slog.ErrorContext(ctx, "failed to repo upsert challenge", "identifier", identifier, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.countIssued(ctx, ch, uc)

	delivery := s.dispatch(ctx, entity.Dispatch{
		Identifier: identifier,
		Channel:    ch,
		UseCase:    uc,
		Code:       chal.Code,
	})

	return &IssueChallengeOutput{
		Identifier:     identifier,
		Channel:        ch,
		ExpiresAt:      chal.ExpiresAt,
		DeliveryID:     delivery.ID,
		DeliveryFailed: delivery.Failed,
	}, nil
}

func (s *Usecase) VerifyChallenge(ctx context.Context, in VerifyChallengeInput) (*VerifyChallengeOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyChallenge")
	defer span.End()

	ch := entity.ChannelOf(strings.TrimSpace(in.Identifier))
	in.Identifier = normalizeIdentifier(ch, in.Identifier)
	in.Code = strings.TrimSpace(in.Code)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	if err := s.verify(ctx, in.Identifier, in.Code); err != nil {
		return nil, err
	}

	return &VerifyChallengeOutput{
		Identifier: in.Identifier,
		Login:      s.withLoginOutcome(ctx, ch, in.Identifier),
	}, nil
}

// verify runs the verification engine against the stored challenge. The
// attempt is reserved before the code is compared, so concurrent submissions
// cannot compare more than maxAttempts times. A match gives it back.
func (s *Usecase) verify(ctx context.Context, identifier, code string) error {
	now := s.clock.Now()
	maxAttempts := s.maxAttempts()

	chal, err := s.repoDB.ReserveChallengeAttempt(ctx, identifier, maxAttempts, now)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo reserve challenge attempt", "identifier", identifier, "error", err)
		return goerror.NewServer(err)
	}
	if err != nil {
		chal = nil
	}

	outcome := chal.Evaluate(code, now, maxAttempts)
	s.countVerification(ctx, outcome)

	switch outcome {
	case entity.OutcomeNotFound:
		return errChallengeNotFound

	case entity.OutcomeExpired:
		return errChallengeExpired

	case entity.OutcomeAttemptsExceeded:
		slog.WarnContext(ctx, "otp attempts exhausted", "identifier", identifier)
		return errChallengeExhausted

	case entity.OutcomeInvalid:
		slog.WarnContext(ctx, "otp mismatch", "identifier", identifier, "attempts", chal.Attempts+1)
		return errChallengeInvalid

	default:
		if err := s.repoDB.ReleaseChallengeAttempt(ctx, *chal, maxAttempts); err != nil {
			slog.ErrorContext(ctx, "failed to repo release challenge attempt", "identifier", identifier, "error", err)
		}
		return nil
	}
}

// dispatch hands the message to the broker. Delivery never fails the caller:
// errors are logged and surface only as Delivery.Failed in synchronous mode.
func (s *Usecase) dispatch(ctx context.Context, d entity.Dispatch) entity.Delivery {
	deliveryID := s.uuid.Generate()
	detached := context.WithoutCancel(ctx)

	if !s.cfg.GetBool("modules.identity.dispatch.sync") {
		started := s.goroutine.Go(detached, func(ctx context.Context) error {
			_ = s.publishDispatch(ctx, d, deliveryID)
			return nil
		})
		if started {
			return entity.Delivery{}
		}
		// pool saturated or closed: publish inline
	}

	if err := s.publishDispatch(detached, d, deliveryID); err != nil {
		return entity.Delivery{Failed: true}
	}

	return entity.Delivery{ID: deliveryID}
}

func (s *Usecase) publishDispatch(ctx context.Context, d entity.Dispatch, deliveryID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout())
	defer cancel()

	if err := s.repoMessaging.PublishOTPDispatch(ctx, d, deliveryID); err != nil {
		slog.ErrorContext(ctx, "failed to publish otp dispatch",
			"identifier", d.Identifier,
			"channel", d.Channel.String(),
			"use_case", d.UseCase.String(),
			"delivery_id", deliveryID,
			"error", err,
		)
		return err
	}

	return nil
}

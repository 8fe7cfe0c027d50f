package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/identity/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type SendResetCodeInput struct {
	Identifier string `validate:"required"`
	Channel    string `validate:"required,oneof=email phone"`
}

func (s *Usecase) SendResetCode(ctx context.Context, in SendResetCodeInput) (*IssueChallengeOutput, error) {
	ctx, span := s.startSpan(ctx, "SendResetCode")
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

	user, err := s.userByIdentifier(ctx, in.Identifier)
	if err != nil {
		return nil, err
	}

	if user.IsBlocked {
		slog.WarnContext(ctx, "password reset requested for blocked user", "user_id", user.ID)
		return nil, errUserBlocked
	}

	return s.issueChallenge(ctx, in.Identifier, ch, entity.UseCaseResetCode)
}

type VerifyResetCodeInput struct {
	Identifier string `validate:"required"`
	Code       string `validate:"required,otpcode"`
}

func (s *Usecase) VerifyResetCode(ctx context.Context, in VerifyResetCodeInput) error {
	ctx, span := s.startSpan(ctx, "VerifyResetCode")
	defer span.End()

	in.Identifier = normalizeIdentifier(entity.ChannelOf(strings.TrimSpace(in.Identifier)), in.Identifier)
	in.Code = strings.TrimSpace(in.Code)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	return s.verify(ctx, in.Identifier, in.Code)
}

type ResetPasswordInput struct {
	Identifier  string `validate:"required"`
	Code        string `validate:"required,otpcode"`
	NewPassword string `validate:"required,password"`
}

// ResetPassword checks the code again, stores the new bcrypt hash and removes
// the challenge so the code cannot be replayed.
func (s *Usecase) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	ctx, span := s.startSpan(ctx, "ResetPassword")
	defer span.End()

	in.Identifier = normalizeIdentifier(entity.ChannelOf(strings.TrimSpace(in.Identifier)), in.Identifier)
	in.Code = strings.TrimSpace(in.Code)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	if err := s.verify(ctx, in.Identifier, in.Code); err != nil {
		return err
	}

	user, err := s.userByIdentifier(ctx, in.Identifier)
	if err != nil {
		return err
	}

	hashed, err := s.bcrypt.Hash(in.NewPassword)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password", "user_id", user.ID, "error", err)
		return goerror.NewServer(err)
	}

	err = s.repoDB.ResetUserPassword(ctx, user.ID, in.Identifier, string(hashed))
	if errors.Is(err, goerror.ErrConflict) {
		slog.WarnContext(ctx, "reset code already spent", "user_id", user.ID)
		return errChallengeNotFound
	}
	if errors.Is(err, goerror.ErrNotFound) {
		return errUserNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo reset user password", "user_id", user.ID, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}

func (s *Usecase) userByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	user, err := s.repoDB.GetUserByIdentifier(ctx, identifier)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "user not found by identifier", "identifier", identifier)
		return nil, errUserNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by identifier", "identifier", identifier, "error", err)
		return nil, goerror.NewServer(err)
	}

	return user, nil
}

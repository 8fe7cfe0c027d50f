package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/otpgate/internal/identity/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
)

type CompleteRegistrationInput struct {
	Name        string `validate:"required,min=1,max=100"`
	DateOfBirth string `validate:"required,datetime=2006-01-02"`
	Email       string `validate:"required,email"`
	Phone       string `validate:"required,e164"`
	LoginMethod string `validate:"required,oneof=email phone"`
}

type CompleteRegistrationOutput struct {
	Token string
	User  ProfileOutput
}

// CompleteRegistration turns a pending identity into an account. The pending
// token only carries the email, so the phone is supplied again here.
func (s *Usecase) CompleteRegistration(ctx context.Context, in CompleteRegistrationInput) (*CompleteRegistrationOutput, error) {
	ctx, span := s.startSpan(ctx, "CompleteRegistration")
	defer span.End()

	in.Name = strings.TrimSpace(in.Name)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	in.Email = normalizeIdentifier(entity.ChannelEmail, in.Email)
	in.Phone = normalizeIdentifier(entity.ChannelPhone, in.Phone)
	in.LoginMethod = strings.ToLower(strings.TrimSpace(in.LoginMethod))

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	dob, err := time.Parse(dateLayout, in.DateOfBirth)
	if err != nil {
		return nil, goerror.NewInvalidInput(nil, "date_of_birth", "date_of_birth must use YYYY-MM-DD")
	}

	clm := jwt.GetAuth(ctx)
	if clm == nil {
		return nil, errInvalidToken
	}

	switch clm.Kind() {
	case jwt.KindPending:
		if id := *clm.Identifier; id != in.Email && id != in.Phone {
			slog.WarnContext(ctx, "registration identity does not match token", "email", in.Email, "phone", in.Phone)
			return nil, errTokenMismatch
		}
	case jwt.KindUser:
		slog.WarnContext(ctx, "registered user attempted registration", "user_id", *clm.UserID)
		return nil, errAlreadyExists
	case jwt.KindAdmin:
		return nil, errNotEndUser
	default:
		return nil, errInvalidToken
	}

	user, err := s.repoDB.NewUser(ctx, entity.NewUser{
		ID:          s.uid.Generate(),
		Email:       in.Email,
		Phone:       in.Phone,
		Name:        in.Name,
		DateOfBirth: dob,
		LoginMethod: entity.ChannelFromString(in.LoginMethod),
	})
	if errors.Is(err, goerror.ErrConflict) {
		slog.WarnContext(ctx, "registration for existing email or phone", "email", in.Email, "phone", in.Phone)
		return nil, errAlreadyExists
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo new user", "email", in.Email, "error", err)
		return nil, goerror.NewServer(err)
	}

	token, err := s.jwt.Generate(jwt.UserPrincipal(user.ID))
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate user token", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.dispatch(ctx, entity.Dispatch{Identifier: user.Email, Channel: entity.ChannelEmail, UseCase: entity.UseCaseWelcome, Name: user.Name})
	s.dispatch(ctx, entity.Dispatch{Identifier: user.Phone, Channel: entity.ChannelPhone, UseCase: entity.UseCaseWelcome, Name: user.Name})

	return &CompleteRegistrationOutput{
		Token: token,
		User:  *profileOf(user),
	}, nil
}

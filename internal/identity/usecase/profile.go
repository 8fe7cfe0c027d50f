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

const dateLayout = "2006-01-02"

type ProfileOutput struct {
	ID          int64
	UserNumber  int64
	Email       string
	Phone       string
	Name        string
	DateOfBirth time.Time
	LoginMethod entity.Channel
	CreatedAt   time.Time
}

func profileOf(u *entity.User) *ProfileOutput {
	return &ProfileOutput{
		ID:          u.ID,
		UserNumber:  u.UserNumber,
		Email:       u.Email,
		Phone:       u.Phone,
		Name:        u.Name,
		DateOfBirth: u.DateOfBirth,
		LoginMethod: u.LoginMethod,
		CreatedAt:   u.CreatedAt,
	}
}

// actingUser resolves the account behind the request token: user tokens by
// primary key, pending tokens by email or phone.
func (s *Usecase) actingUser(ctx context.Context) (*entity.User, error) {
	clm := jwt.GetAuth(ctx)
	if clm == nil {
		return nil, errInvalidToken
	}

	var (
		user *entity.User
		err  error
	)
	switch clm.Kind() {
	case jwt.KindUser:
		user, err = s.repoDB.GetUserByID(ctx, *clm.UserID)
	case jwt.KindPending:
		user, err = s.repoDB.GetUserByIdentifier(ctx, *clm.Identifier)
	case jwt.KindAdmin:
		return nil, errNotEndUser
	default:
		return nil, errInvalidToken
	}

	if errors.Is(err, goerror.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get acting user", "kind", string(clm.Kind()), "error", err)
		return nil, goerror.NewServer(err)
	}

	return user, nil
}

func (s *Usecase) Profile(ctx context.Context) (*ProfileOutput, error) {
	ctx, span := s.startSpan(ctx, "Profile")
	defer span.End()

	user, err := s.actingUser(ctx)
	if err != nil {
		return nil, err
	}

	return profileOf(user), nil
}

type ProfileUpdateInput struct {
	Name        string `validate:"required,min=1,max=100"`
	DateOfBirth string `validate:"required,datetime=2006-01-02"`
}

func (s *Usecase) ProfileUpdate(ctx context.Context, in ProfileUpdateInput) error {
	ctx, span := s.startSpan(ctx, "ProfileUpdate")
	defer span.End()

	in.Name = strings.TrimSpace(in.Name)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	dob, err := time.Parse(dateLayout, in.DateOfBirth)
	if err != nil {
		return goerror.NewInvalidInput(nil, "date_of_birth", "date_of_birth must use YYYY-MM-DD")
	}

	user, err := s.actingUser(ctx)
	if err != nil {
		return err
	}

	err = s.repoDB.UpdateUserProfile(ctx, user.ID, in.Name, dob)
	if errors.Is(err, goerror.ErrNotFound) {
		return errUserNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo update user profile", "user_id", user.ID, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}

type PublicProfileInput struct {
	UserNumber int64 `validate:"required,gt=0"`
}

type PublicProfileOutput struct {
	UserNumber int64
	Name       string
	CreatedAt  time.Time
}

func (s *Usecase) PublicProfile(ctx context.Context, in PublicProfileInput) (*PublicProfileOutput, error) {
	ctx, span := s.startSpan(ctx, "PublicProfile")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	p, err := s.repoDB.GetPublicProfile(ctx, in.UserNumber)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get public profile", "user_number", in.UserNumber, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &PublicProfileOutput{
		UserNumber: p.UserNumber,
		Name:       p.Name,
		CreatedAt:  p.CreatedAt,
	}, nil
}

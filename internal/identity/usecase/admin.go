package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
)

type AdminOutput struct {
	ID        int64
	Email     string
	Name      string
	CreatedAt time.Time
}

type IssueAdminTokenInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type IssueAdminTokenOutput struct {
	Token string
	Admin AdminOutput
}

func (s *Usecase) IssueAdminToken(ctx context.Context, in IssueAdminTokenInput) (*IssueAdminTokenOutput, error) {
	ctx, span := s.startSpan(ctx, "IssueAdminToken")
	defer span.End()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	admin, err := s.repoDB.GetAdminByEmail(ctx, in.Email)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "admin login for unknown email", "email", in.Email)
		return nil, errBadCredentials
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get admin by email", "email", in.Email, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !s.bcrypt.Verify(admin.PasswordHash, in.Password) {
		slog.WarnContext(ctx, "admin login with wrong password", "admin_id", admin.ID)
		return nil, errBadCredentials
	}

	token, err := s.jwt.Generate(jwt.AdminPrincipal(admin.ID))
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate admin token", "admin_id", admin.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &IssueAdminTokenOutput{
		Token: token,
		Admin: AdminOutput{
			ID:        admin.ID,
			Email:     admin.Email,
			Name:      admin.Name,
			CreatedAt: admin.CreatedAt,
		},
	}, nil
}

func (s *Usecase) AdminProfile(ctx context.Context) (*AdminOutput, error) {
	ctx, span := s.startSpan(ctx, "AdminProfile")
	defer span.End()

	clm := jwt.GetAuth(ctx)
	if clm == nil {
		return nil, errInvalidToken
	}
	if clm.Kind() != jwt.KindAdmin {
		return nil, errNotAdmin
	}

	admin, err := s.repoDB.GetAdminByID(ctx, *clm.AdminID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, errAdminNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get admin by id", "admin_id", *clm.AdminID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &AdminOutput{
		ID:        admin.ID,
		Email:     admin.Email,
		Name:      admin.Name,
		CreatedAt: admin.CreatedAt,
	}, nil
}

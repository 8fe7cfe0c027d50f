package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
)

type ValidateTokenInput struct {
	Token string `validate:"required"`
}

type ValidateTokenOutput struct {
	Kind       jwt.Kind
	UserID     *int64
	Identifier *string
	AdminID    *int64
	ExpiresAt  time.Time
}

// ValidateToken reports the principal of a token. Every verification failure
// maps to the same invalid token error.
func (s *Usecase) ValidateToken(ctx context.Context, in ValidateTokenInput) (*ValidateTokenOutput, error) {
	ctx, span := s.startSpan(ctx, "ValidateToken")
	defer span.End()

	in.Token = strings.TrimSpace(in.Token)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	clm, err := s.jwt.Verify(in.Token)
	if err != nil {
		slog.WarnContext(ctx, "token validation failed", "error", err)
		return nil, errInvalidToken
	}

	out := &ValidateTokenOutput{
		Kind:       clm.Kind(),
		UserID:     clm.UserID,
		Identifier: clm.Identifier,
		AdminID:    clm.AdminID,
	}
	if clm.ExpiresAt != nil {
		out.ExpiresAt = clm.ExpiresAt.Time
	}

	return out, nil
}

package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/identity/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
)

type LoginOutcome string

const (
	LoginOutcomeExistingUser LoginOutcome = "existing_user"
	LoginOutcomeNewUser      LoginOutcome = "new_user"
)

type LoginProgress struct {
	EmailVerified bool
	PhoneVerified bool
	State         entity.LoginState
}

func progressOf(sess *entity.LoginSession) *LoginProgress {
	return &LoginProgress{
		EmailVerified: sess.EmailVerified,
		PhoneVerified: sess.PhoneVerified,
		State:         sess.State(),
	}
}

type SendLoginCodesInput struct {
	Email string `validate:"required,email"`
	Phone string `validate:"required,e164"`
}

type SendLoginCodesOutput struct {
	Email IssueChallengeOutput
	Phone IssueChallengeOutput
	State entity.LoginState
}

// SendLoginCodes issues one code per channel and opens the login session that
// correlates both verifications. The email code is issued first; a failure on
// either channel aborts without undoing the other.
func (s *Usecase) SendLoginCodes(ctx context.Context, in SendLoginCodesInput) (*SendLoginCodesOutput, error) {
	ctx, span := s.startSpan(ctx, "SendLoginCodes")
	defer span.End()

	in.Email = normalizeIdentifier(entity.ChannelEmail, in.Email)
	in.Phone = normalizeIdentifier(entity.ChannelPhone, in.Phone)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	emailOut, err := s.issueChallenge(ctx, in.Email, entity.ChannelEmail, entity.UseCaseLoginCode)
	if err != nil {
		return nil, err
	}

	phoneOut, err := s.issueChallenge(ctx, in.Phone, entity.ChannelPhone, entity.UseCaseLoginCode)
	if err != nil {
		return nil, err
	}

	sess := entity.LoginSession{
		Email:     in.Email,
		Phone:     in.Phone,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repoCache.SaveLoginSession(ctx, sess, s.challengeTTL()); err != nil {
		slog.ErrorContext(ctx, "failed to repo save login session", "email", in.Email, "phone", in.Phone, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &SendLoginCodesOutput{
		Email: *emailOut,
		Phone: *phoneOut,
		State: sess.State(),
	}, nil
}

type VerifyLoginChannelInput struct {
	Channel    string `validate:"required,oneof=email phone"`
	Identifier string `validate:"required"`
	Code       string `validate:"required,otpcode"`
}

func (s *Usecase) VerifyLoginChannel(ctx context.Context, in VerifyLoginChannelInput) (*LoginProgress, error) {
	ctx, span := s.startSpan(ctx, "VerifyLoginChannel")
	defer span.End()

	in.Channel = strings.ToLower(strings.TrimSpace(in.Channel))
	ch := entity.ChannelFromString(in.Channel)
	in.Identifier = normalizeIdentifier(ch, in.Identifier)
	in.Code = strings.TrimSpace(in.Code)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	if err := s.validateIdentifier(ch, in.Identifier); err != nil {
		return nil, err
	}

	sess, err := s.repoCache.FindLoginSession(ctx, ch, in.Identifier)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, errLoginNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo find login session", "channel", ch.String(), "identifier", in.Identifier, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.verify(ctx, in.Identifier, in.Code); err != nil {
		return nil, err
	}

	marked, err := s.repoCache.MarkLoginChannelVerified(ctx, sess.Email, ch)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, errLoginNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo mark login channel", "channel", ch.String(), "email", sess.Email, "error", err)
		return nil, goerror.NewServer(err)
	}

	return progressOf(marked), nil
}

// withLoginOutcome records a verification made through the generic endpoint on
// the login session tracking identifier, if there is one. Cache failures are
// logged and do not fail the verification.
func (s *Usecase) withLoginOutcome(ctx context.Context, ch entity.Channel, identifier string) *LoginProgress {
	sess, err := s.repoCache.FindLoginSession(ctx, ch, identifier)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo find login session", "channel", ch.String(), "identifier", identifier, "error", err)
		return nil
	}

	marked, err := s.repoCache.MarkLoginChannelVerified(ctx, sess.Email, ch)
	if err != nil {
		if !errors.Is(err, goerror.ErrNotFound) {
			slog.ErrorContext(ctx, "failed to repo mark login channel", "channel", ch.String(), "email", sess.Email, "error", err)
		}
		return nil
	}

	return progressOf(marked)
}

type ResolveLoginInput struct {
	Email string `validate:"required,email"`
}

type ResolveLoginOutput struct {
	Outcome LoginOutcome
	Token   string
	User    *ProfileOutput
}

// ResolveLogin consumes a fully verified login session and hands out a token:
// a user token when the email or phone belongs to an account, a pending token
// carrying the email otherwise. The session is single-use.
func (s *Usecase) ResolveLogin(ctx context.Context, in ResolveLoginInput) (*ResolveLoginOutput, error) {
	ctx, span := s.startSpan(ctx, "ResolveLogin")
	defer span.End()

	in.Email = normalizeIdentifier(entity.ChannelEmail, in.Email)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	sess, err := s.repoCache.ConsumeLoginSession(ctx, in.Email)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, errLoginNotFound
	}
	if errors.Is(err, entity.ErrLoginNotVerified) {
		slog.WarnContext(ctx, "login resolve before both channels verified", "email", in.Email)
		return nil, errLoginIncomplete
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo consume login session", "email", in.Email, "error", err)
		return nil, goerror.NewServer(err)
	}

	user, err := s.repoDB.GetUserByEmailOrPhone(ctx, sess.Email, sess.Phone)
	if errors.Is(err, goerror.ErrNotFound) {
		token, err := s.jwt.Generate(jwt.PendingPrincipal(sess.Email))
		if err != nil {
			slog.ErrorContext(ctx, "failed to generate pending token", "email", sess.Email, "error", err)
			return nil, goerror.NewServer(err)
		}

		return &ResolveLoginOutput{Outcome: LoginOutcomeNewUser, Token: token}, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by email or phone", "email", sess.Email, "phone", sess.Phone, "error", err)
		return nil, goerror.NewServer(err)
	}

	if user.IsBlocked {
		slog.WarnContext(ctx, "blocked user attempted login", "user_id", user.ID)
		return nil, errUserBlocked
	}

	token, err := s.jwt.Generate(jwt.UserPrincipal(user.ID))
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate user token", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &ResolveLoginOutput{
		Outcome: LoginOutcomeExistingUser,
		Token:   token,
		User:    profileOf(user),
	}, nil
}

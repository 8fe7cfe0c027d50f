package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/identity/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultChallengeTTL    = 5 * time.Minute
	defaultMaxAttempts     = 3
	defaultRateLimitWindow = time.Hour
	defaultRateLimitMax    = 3
	defaultDispatchTimeout = 10 * time.Second
)

type repoMessaging interface {
	PublishOTPDispatch(ctx context.Context, d entity.Dispatch, deliveryID string) error
}

type repoDB interface {
	UpsertChallenge(ctx context.Context, c entity.Challenge, pruneBefore time.Time) error
	ReserveChallengeAttempt(ctx context.Context, identifier string, maxAttempts int, at time.Time) (*entity.Challenge, error)
	ReleaseChallengeAttempt(ctx context.Context, c entity.Challenge, maxAttempts int) error
	CountExhaustedChallenges(ctx context.Context, identifier string, since time.Time) (int, error)

	GetUserByID(ctx context.Context, id int64) (*entity.User, error)
	GetUserByIdentifier(ctx context.Context, identifier string) (*entity.User, error)
	GetUserByEmailOrPhone(ctx context.Context, email, phone string) (*entity.User, error)
	GetPublicProfile(ctx context.Context, userNumber int64) (*entity.PublicProfile, error)
	GetAdminByEmail(ctx context.Context, email string) (*entity.Admin, error)
	GetAdminByID(ctx context.Context, id int64) (*entity.Admin, error)

	NewUser(ctx context.Context, user entity.NewUser) (*entity.User, error)
	UpdateUserProfile(ctx context.Context, id int64, name string, dateOfBirth time.Time) error
	ResetUserPassword(ctx context.Context, userID int64, identifier, newHash string) error
}

type repoCache interface {
	SaveLoginSession(ctx context.Context, s entity.LoginSession, ttl time.Duration) error
	FindLoginSession(ctx context.Context, ch entity.Channel, identifier string) (*entity.LoginSession, error)
	MarkLoginChannelVerified(ctx context.Context, email string, ch entity.Channel) (*entity.LoginSession, error)
	ConsumeLoginSession(ctx context.Context, email string) (*entity.LoginSession, error)
}

type Usecase struct {
	repoDB        repoDB
	repoCache     repoCache
	repoMessaging repoMessaging
	validator     validator.Validator
	cfg           config.Config
	bcrypt        hash.Hash
	uid           uid.NumberID
	uuid          uid.StringID
	otp           otp.Generator
	clock         clock.Clocker
	jwt           jwt.JWT
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager

	issuedCounter   metric.Int64Counter
	verifiedCounter metric.Int64Counter
}

type Dependency struct {
	RepoDB        repoDB
	RepoCache     repoCache
	RepoMessaging repoMessaging
	Validator     validator.Validator
	Config        config.Config
	Bcrypt        hash.Hash
	UID           uid.NumberID
	UUID          uid.StringID
	OTP           otp.Generator
	Clock         clock.Clocker
	JWT           jwt.JWT
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	meter := dep.Instrument.Meter("identity.usecase")

	issued, err := meter.Int64Counter("identity.challenge.issued", metric.WithDescription("Number of one-time codes issued"))
	if err != nil {
		slog.Error("failed to create challenge issued counter", "error", err)
	}

	verified, err := meter.Int64Counter("identity.challenge.verifications", metric.WithDescription("Number of one-time code verifications by outcome"))
	if err != nil {
		slog.Error("failed to create challenge verification counter", "error", err)
	}

	return &Usecase{
		repoDB:          dep.RepoDB,
		repoCache:       dep.RepoCache,
		repoMessaging:   dep.RepoMessaging,
		validator:       dep.Validator,
		cfg:             dep.Config,
		bcrypt:          dep.Bcrypt,
		uid:             dep.UID,
		uuid:            dep.UUID,
		otp:             dep.OTP,
		clock:           dep.Clock,
		jwt:             dep.JWT,
		ins:             dep.Instrument,
		goroutine:       dep.Goroutine,
		issuedCounter:   issued,
		verifiedCounter: verified,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("identity.usecase").Start(ctx, name)
}

func (s *Usecase) challengeTTL() time.Duration {
	if d := s.cfg.GetMinute("modules.identity.otp.ttl_minutes"); d > 0 {
		return d
	}
	return defaultChallengeTTL
}

func (s *Usecase) maxAttempts() int {
	if n := s.cfg.GetInt("modules.identity.otp.max_attempts"); n > 0 {
		return n
	}
	return defaultMaxAttempts
}

func (s *Usecase) rateLimitWindow() time.Duration {
	if d := s.cfg.GetMinute("modules.identity.otp.rate_limit_window_minutes"); d > 0 {
		return d
	}
	return defaultRateLimitWindow
}

func (s *Usecase) rateLimitMax() int {
	if n := s.cfg.GetInt("modules.identity.otp.rate_limit_max"); n > 0 {
		return n
	}
	return defaultRateLimitMax
}

func (s *Usecase) dispatchTimeout() time.Duration {
	if d := s.cfg.GetSecond("modules.identity.dispatch.timeout_seconds"); d > 0 {
		return d
	}
	return defaultDispatchTimeout
}

func (s *Usecase) countIssued(ctx context.Context, ch entity.Channel, uc entity.DispatchUseCase) {
	if s.issuedCounter == nil {
		return
	}
	s.issuedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", ch.String()),
		attribute.String("use_case", uc.String()),
	))
}

func (s *Usecase) countVerification(ctx context.Context, outcome entity.VerifyOutcome) {
	if s.verifiedCounter == nil {
		return
	}
	s.verifiedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.String())))
}

package identity

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpgate/internal/identity/entity"
	"github.com/shandysiswandi/otpgate/internal/identity/inbound"
	"github.com/shandysiswandi/otpgate/internal/identity/outbound/cache"
	"github.com/shandysiswandi/otpgate/internal/identity/outbound/db"
	"github.com/shandysiswandi/otpgate/internal/identity/outbound/mq"
	"github.com/shandysiswandi/otpgate/internal/identity/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/crypter"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

type Dependency struct {
	Ctx        context.Context            `validate:"required"`
	DBConn     *pgxpool.Pool              `validate:"required"`
	CacheConn  redis.UniversalClient      `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
	Router     *router.Router             `validate:"required"`
	Messaging  messaging.Publisher        `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	HMAC       hash.Hash                  `validate:"required"`
	Bcrypt     hash.Hash                  `validate:"required"`
	Crypter    crypter.Crypter            `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	OTP        otp.Generator              `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	JWT        jwt.JWT                    `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	repoDB := db.NewDB(dep.DBConn, dep.Crypter, dep.Instrument)
	if dep.Config.GetBool("modules.identity.migrate") {
		if err := repoDB.Migrate(dep.Ctx); err != nil {
			return err
		}
	}
	if err := bootstrapAdmin(dep, repoDB); err != nil {
		return err
	}

	uc := usecase.New(usecase.Dependency{
		RepoDB:        repoDB,
		RepoCache:     cache.NewCache(dep.CacheConn, dep.HMAC, dep.Instrument),
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		Validator:     dep.Validator,
		Config:        dep.Config,
		Bcrypt:        dep.Bcrypt,
		UID:           dep.UID,
		UUID:          dep.UUID,
		OTP:           dep.OTP,
		Clock:         dep.Clock,
		JWT:           dep.JWT,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}

// bootstrapAdmin seeds the configured administrator once. An existing row
// with the same email is left untouched.
func bootstrapAdmin(dep Dependency, repoDB *db.DB) error {
	email := strings.ToLower(strings.TrimSpace(dep.Config.GetString("modules.identity.bootstrap_admin.email")))
	password := dep.Config.GetString("modules.identity.bootstrap_admin.password")
	if email == "" || password == "" {
		return nil
	}

	passHash, err := dep.Bcrypt.Hash(password)
	if err != nil {
		return err
	}

	name := dep.Config.GetString("modules.identity.bootstrap_admin.name")
	if name == "" {
		name = "Administrator"
	}

	created, err := repoDB.EnsureAdmin(dep.Ctx, entity.Admin{
		ID:           dep.UID.Generate(),
		Email:        email,
		Name:         name,
		PasswordHash: string(passHash),
	})
	if err != nil {
		return err
	}
	if created {
		slog.InfoContext(dep.Ctx, "bootstrap admin created", "email", email)
	}

	return nil
}

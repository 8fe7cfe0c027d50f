package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidSigningMethod is returned when the JWT signing method is not supported.
	ErrInvalidSigningMethod = errors.New("invalid JWT signing method")

	// ErrSigningKeyTooShort is returned when the HS512 signing key is less than 64 bytes.
	ErrSigningKeyTooShort = errors.New("HS512 signing key must be at least 64 bytes (512 bits)")

	// ErrTokenExpired is returned when the JWT token has expired.
	ErrTokenExpired = errors.New("JWT token has expired")

	// ErrInvalidToken is returned when the token fails signature or claim validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMalformed is returned when a token carries zero or several principal claims.
	ErrMalformed = errors.New("token carries no single principal claim")
)

// Kind tells which principal claim a token carries.
type Kind string

const (
	// KindUser is a registered end user ({userId}).
	KindUser Kind = "user"
	// KindPending is a verified identity without an account yet ({identifier}).
	KindPending Kind = "pending"
	// KindAdmin is an administrator ({adminId}).
	KindAdmin Kind = "admin"
)

// JWT defines the minimal operations needed by the app: generate and verify a token.
type JWT interface {
	// Generate creates a signed token for the principal.
	Generate(p Principal) (string, error)
	// Verify parses and validates the token and returns claims.
	Verify(tokenStr string) (Claims, error)
}

type clocker interface {
	Now() time.Time
}

type generator interface {
	Generate() string
}

type jwtContextKey struct{}

// Config defines the inputs for building a JWT implementation.
type Config struct {
	// Secret is the HMAC signing key.
	Secret []byte
	// Issuer is the token issuer value.
	Issuer string
	// Audiences are the accepted token audiences.
	Audiences []string
	// TTL is the token time-to-live.
	TTL time.Duration
	// Clock provides the current time source.
	Clock clocker
	// UUID generates token IDs.
	UUID generator
}

// Principal is the identity payload of a token. Exactly one field is set.
type Principal struct {
	UserID     *int64  `json:"userId,omitempty"`
	Identifier *string `json:"identifier,omitempty"`
	AdminID    *int64  `json:"adminId,omitempty"`
}

// UserPrincipal returns the payload for a registered user.
func UserPrincipal(id int64) Principal {
	return Principal{UserID: &id}
}

// PendingPrincipal returns the payload for a verified identity without an account.
func PendingPrincipal(identifier string) Principal {
	return Principal{Identifier: &identifier}
}

// AdminPrincipal returns the payload for an administrator.
func AdminPrincipal(id int64) Principal {
	return Principal{AdminID: &id}
}

// Kind returns the principal kind, or "" when zero or several claims are set.
func (p Principal) Kind() Kind {
	var kind Kind
	n := 0

	if p.UserID != nil {
		kind = KindUser
		n++
	}
	if p.Identifier != nil {
		kind = KindPending
		n++
	}
	if p.AdminID != nil {
		kind = KindAdmin
		n++
	}

	if n != 1 {
		return ""
	}
	return kind
}

// Claims wraps the registered claims with the principal payload.
type Claims struct {
	jwt.RegisteredClaims
	Principal
}

// GetAuth returns the JWT claims stored in the context, if any.
func GetAuth(ctx context.Context) *Claims {
	clm, ok := ctx.Value(jwtContextKey{}).(Claims)
	if !ok {
		return nil
	}

	return &clm
}

// SetAuth stores JWT claims in the context.
func SetAuth(ctx context.Context, clm Claims) context.Context {
	return context.WithValue(ctx, jwtContextKey{}, clm)
}

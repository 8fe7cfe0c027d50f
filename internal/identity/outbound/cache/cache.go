package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	loginKeyPrefix      = "identity:login:"
	loginPhoneKeyPrefix = "identity:login_phone:"
)

// Cache keeps short-lived login state in redis. Identifiers never appear in
// key names; they are replaced by a keyed hash.
type Cache struct {
	rdb    redis.UniversalClient
	hasher hash.Hash
	ins    instrument.Instrumentation
}

func NewCache(rdb redis.UniversalClient, hasher hash.Hash, ins instrument.Instrumentation) *Cache {
	return &Cache{
		rdb:    rdb,
		hasher: hasher,
		ins:    ins,
	}
}

func (c *Cache) key(prefix, identifier string) (string, error) {
	sum, err := c.hasher.Hash(identifier)
	if err != nil {
		return "", err
	}
	return prefix + string(sum), nil
}

func (c *Cache) mapError(err error) error {
	if errors.Is(err, redis.Nil) {
		return goerror.ErrNotFound
	}
	return err
}

func (c *Cache) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.ins.Tracer("identity.outbound.cache").Start(ctx, name)
}

func (c *Cache) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

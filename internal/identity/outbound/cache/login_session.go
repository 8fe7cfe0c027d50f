package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpgate/internal/identity/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

const (
	fieldEmail         = "email"
	fieldPhone         = "phone"
	fieldEmailVerified = "email_verified"
	fieldPhoneVerified = "phone_verified"
	fieldCreatedAt     = "created_at"
)

// markVerified flips one flag and returns the whole session in one round
// trip so two channels verified at the same moment both observe each other.
var markVerified = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return nil end
redis.call('HSET', KEYS[1], ARGV[1], '1')
return redis.call('HMGET', KEYS[1], 'email', 'phone', 'email_verified', 'phone_verified', 'created_at')
`)

// consume deletes the session only when both flags are set.
//
//	{0}                  missing
//	{1, email, phone, t} not fully verified
//	{2, email, phone, t} consumed
var consume = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'email', 'phone', 'email_verified', 'phone_verified', 'created_at')
if not v[1] then return {0} end
if v[3] ~= '1' or v[4] ~= '1' then return {1, v[1], v[2], v[5]} end
redis.call('DEL', KEYS[1])
return {2, v[1], v[2], v[5]}
`)

// releasePhone drops the phone index only while it still points at the
// consumed login. A newer login on the same phone keeps its index.
var releasePhone = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then return redis.call('DEL', KEYS[1]) end
return 0
`)

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// SaveLoginSession replaces any login in progress for the same email and
// points the phone index at it.
func (c *Cache) SaveLoginSession(ctx context.Context, s entity.LoginSession, ttl time.Duration) (err error) {
	ctx, span := c.startSpan(ctx, "SaveLoginSession")
	defer func() { c.endSpan(span, err) }()

	key, err := c.key(loginKeyPrefix, s.Email)
	if err != nil {
		return err
	}
	phoneKey, err := c.key(loginPhoneKeyPrefix, s.Phone)
	if err != nil {
		return err
	}

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		fieldEmail, s.Email,
		fieldPhone, s.Phone,
		fieldEmailVerified, flag(s.EmailVerified),
		fieldPhoneVerified, flag(s.PhoneVerified),
		fieldCreatedAt, strconv.FormatInt(s.CreatedAt.UnixMilli(), 10),
	)
	pipe.Expire(ctx, key, ttl)
	pipe.Set(ctx, phoneKey, s.Email, ttl)
	_, err = pipe.Exec(ctx)

	return err
}

// FindLoginSession looks a login up by either of its identifiers. It returns
// goerror.ErrNotFound when the identifier is not the one the login expects on
// ch.
func (c *Cache) FindLoginSession(ctx context.Context, ch entity.Channel, identifier string) (_ *entity.LoginSession, err error) {
	ctx, span := c.startSpan(ctx, "FindLoginSession")
	defer func() { c.endSpan(span, err) }()

	email := identifier
	if ch == entity.ChannelPhone {
		phoneKey, err := c.key(loginPhoneKeyPrefix, identifier)
		if err != nil {
			return nil, err
		}
		if email, err = c.rdb.Get(ctx, phoneKey).Result(); err != nil {
			return nil, c.mapError(err)
		}
	}

	key, err := c.key(loginKeyPrefix, email)
	if err != nil {
		return nil, err
	}

	vals, err := c.rdb.HMGet(ctx, key, fieldEmail, fieldPhone, fieldEmailVerified, fieldPhoneVerified, fieldCreatedAt).Result()
	if err != nil {
		return nil, c.mapError(err)
	}

	sess, err := sessionOf(vals)
	if err != nil {
		return nil, err
	}
	if !sess.Tracks(ch, identifier) {
		return nil, goerror.ErrNotFound
	}

	return sess, nil
}

func (c *Cache) MarkLoginChannelVerified(ctx context.Context, email string, ch entity.Channel) (_ *entity.LoginSession, err error) {
	ctx, span := c.startSpan(ctx, "MarkLoginChannelVerified")
	defer func() { c.endSpan(span, err) }()

	field := fieldEmailVerified
	if ch == entity.ChannelPhone {
		field = fieldPhoneVerified
	}

	key, err := c.key(loginKeyPrefix, email)
	if err != nil {
		return nil, err
	}

	vals, err := markVerified.Run(ctx, c.rdb, []string{key}, field).Slice()
	if err != nil {
		return nil, c.mapError(err)
	}

	return sessionOf(vals)
}

// ConsumeLoginSession removes a fully verified login. It returns
// entity.ErrLoginNotVerified and leaves the login intact when a channel is
// still pending.
func (c *Cache) ConsumeLoginSession(ctx context.Context, email string) (_ *entity.LoginSession, err error) {
	ctx, span := c.startSpan(ctx, "ConsumeLoginSession")
	defer func() { c.endSpan(span, err) }()

	key, err := c.key(loginKeyPrefix, email)
	if err != nil {
		return nil, err
	}

	res, err := consume.Run(ctx, c.rdb, []string{key}).Slice()
	if err != nil {
		return nil, c.mapError(err)
	}
	if len(res) == 0 {
		return nil, goerror.ErrNotFound
	}

	status, _ := res[0].(int64)
	switch status {
	case 0:
		return nil, goerror.ErrNotFound
	case 1:
		return nil, entity.ErrLoginNotVerified
	}

	sess := &entity.LoginSession{EmailVerified: true, PhoneVerified: true}
	if len(res) > 1 {
		sess.Email, _ = res[1].(string)
	}
	if len(res) > 2 {
		sess.Phone, _ = res[2].(string)
	}
	if len(res) > 3 {
		sess.CreatedAt = parseMillis(res[3])
	}

	if phoneKey, err := c.key(loginPhoneKeyPrefix, sess.Phone); err == nil {
		if err := releasePhone.Run(ctx, c.rdb, []string{phoneKey}, sess.Email).Err(); err != nil {
			slog.WarnContext(ctx, "failed to release login phone index", "error", err)
		}
	}

	return sess, nil
}

func sessionOf(vals []any) (*entity.LoginSession, error) {
	if len(vals) != 5 {
		return nil, fmt.Errorf("identity cache: unexpected login session shape %d", len(vals))
	}

	email, _ := vals[0].(string)
	if email == "" {
		return nil, goerror.ErrNotFound
	}
	phone, _ := vals[1].(string)
	emailVerified, _ := vals[2].(string)
	phoneVerified, _ := vals[3].(string)

	return &entity.LoginSession{
		Email:         email,
		Phone:         phone,
		EmailVerified: emailVerified == "1",
		PhoneVerified: phoneVerified == "1",
		CreatedAt:     parseMillis(vals[4]),
	}, nil
}

func parseMillis(v any) time.Time {
	s, _ := v.(string)
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

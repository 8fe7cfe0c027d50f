// Package idempotency guards side effects that must run at most once per key,
// such as delivering a message that a broker may redeliver.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrAlreadyInProgress = errors.New("idempotency: operation already in progress")
	ErrAlreadyCompleted  = errors.New("idempotency: operation already completed")
	ErrInvalidState      = errors.New("idempotency: invalid state")
)

type State string

const (
	StateNone       State = "none"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

func (s State) String() string {
	return string(s)
}

type Idempotency interface {
	Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error)
	MarkCompleted(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error
}

const (
	keyPrefix           = "idempotency:"
	defaultLockDuration = time.Minute
	defaultStateTTL     = 24 * time.Hour
)

// releaseScript drops the key only while it is still in progress, so a late
// failure never erases a completion recorded by another worker.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// StateTracker keeps operation state in redis under "idempotency:<key>".
type StateTracker struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *StateTracker {
	return &StateTracker{client: client}
}

type Option func(*execOptions)

type execOptions struct {
	lockDuration time.Duration
	stateTTL     time.Duration
}

// WithLockDuration bounds how long a crashed worker can block the key.
func WithLockDuration(d time.Duration) Option {
	return func(o *execOptions) { o.lockDuration = d }
}

// WithStateTTL sets how long a completed operation is remembered.
func WithStateTTL(d time.Duration) Option {
	return func(o *execOptions) { o.stateTTL = d }
}

// Acquire claims key for lockDuration. StateNone means the caller now holds
// it; any other state reports who got there first.
func (s *StateTracker) Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error) {
	prev, err := s.client.SetArgs(ctx, keyPrefix+key, StateInProgress.String(), redis.SetArgs{
		Mode: "NX",
		TTL:  lockDuration,
		Get:  true,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return StateNone, nil
	}
	if err != nil {
		return StateNone, err
	}

	switch State(prev) {
	case StateInProgress, StateCompleted:
		return State(prev), nil
	default:
		return StateNone, ErrInvalidState
	}
}

func (s *StateTracker) MarkCompleted(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, keyPrefix+key, StateCompleted.String(), ttl).Err()
}

// Release forgets an in-progress key so a later attempt can run again.
// Completed keys are left alone.
func (s *StateTracker) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, s.client, []string{keyPrefix + key}, StateInProgress.String()).Err()
}

// Exec runs fn unless the key is held or already completed. A failing fn
// releases the key so the operation can be retried.
func (s *StateTracker) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	o := execOptions{lockDuration: defaultLockDuration, stateTTL: defaultStateTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.lockDuration <= 0 {
		o.lockDuration = defaultLockDuration
	}
	if o.stateTTL <= 0 {
		o.stateTTL = defaultStateTTL
	}

	state, err := s.Acquire(ctx, key, o.lockDuration)
	if err != nil {
		return err
	}
	switch state {
	case StateInProgress:
		return ErrAlreadyInProgress
	case StateCompleted:
		return ErrAlreadyCompleted
	}

	// bookkeeping must survive a canceled caller
	bg := context.WithoutCancel(ctx)

	if err := fn(ctx); err != nil {
		return errors.Join(err, s.Release(bg, key))
	}

	return s.MarkCompleted(bg, key, o.stateTTL)
}

// Package idempotency prevents duplicate execution of an operation keyed by a
// caller-supplied string. State lives in redis so concurrent replicas agree on
// who runs first.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Errors returned by Exec when the key has already been claimed.
var (
	ErrAlreadyInProgress = errors.New("idempotent operation still in progress")
	ErrAlreadyCompleted  = errors.New("idempotent operation already completed")
	ErrAlreadyFailed     = errors.New("idempotent operation previously failed")
	ErrInvalidState      = errors.New("invalid state")
)

// State describes where a keyed operation stands.
type State string

const (
	StateNone       State = "none"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateError      State = "error"
)

func (s State) String() string { return string(s) }

// Idempotency is the guard usecases depend on. Exec is the common path;
// Acquire/MarkCompleted/MarkFailed exist for callers that need finer control
// over when the outcome is recorded.
type Idempotency interface {
	Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error)
	MarkCompleted(ctx context.Context, key string, ttl time.Duration) error
	MarkFailed(ctx context.Context, key string, ttl time.Duration) error
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error
}

const (
	defaultLockDuration = time.Minute
	defaultStateTTL     = time.Minute
)

type execOptions struct {
	lockDuration time.Duration
	stateTTL     time.Duration
}

// Option adjusts lock and state retention for a single Exec call.
type Option func(*execOptions)

func WithLockDuration(d time.Duration) Option {
	return func(o *execOptions) { o.lockDuration = d }
}

func WithStateTTL(d time.Duration) Option {
	return func(o *execOptions) { o.stateTTL = d }
}

// StateTracker implements Idempotency on top of a redis client.
type StateTracker struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client) *StateTracker {
	return &StateTracker{client: client, prefix: "idempotency:"}
}

// Acquire claims the key with SET NX. StateNone means the caller won and may
// proceed; any other state reports what a previous caller did with the key.
func (s *StateTracker) Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error) {
	fk := s.prefix + key

	won, err := s.client.SetNX(ctx, fk, StateInProgress.String(), lockDuration).Result()
	if err != nil {
		return StateError, err
	}
	if won {
		return StateNone, nil
	}

	cur, err := s.client.Get(ctx, fk).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// Key expired between SetNX and Get. One retry; a second loss
		// means the key is being churned and the caller should back off.
		won, err = s.client.SetNX(ctx, fk, StateInProgress.String(), lockDuration).Result()
		if err != nil {
			return StateError, err
		}
		if won {
			return StateNone, nil
		}
		return StateError, ErrInvalidState
	case err != nil:
		return StateError, err
	}

	for _, st := range []State{StateInProgress, StateCompleted, StateFailed} {
		if cur == st.String() {
			return st, nil
		}
	}
	return StateError, ErrInvalidState
}

func (s *StateTracker) MarkCompleted(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, StateCompleted.String(), ttl).Err()
}

func (s *StateTracker) MarkFailed(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, StateFailed.String(), ttl).Err()
}

// Exec runs fn at most once per key while state is retained. The fn error is
// returned as-is after the key is marked failed, so callers keep their own
// error mapping.
func (s *StateTracker) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	eo := &execOptions{lockDuration: defaultLockDuration, stateTTL: defaultStateTTL}
	for _, opt := range opts {
		opt(eo)
	}
	if eo.lockDuration <= 0 {
		eo.lockDuration = defaultLockDuration
	}
	if eo.stateTTL <= 0 {
		eo.stateTTL = defaultStateTTL
	}

	state, err := s.Acquire(ctx, key, eo.lockDuration)
	if err != nil {
		return err
	}

	switch state {
	case StateInProgress:
		return ErrAlreadyInProgress
	case StateCompleted:
		return ErrAlreadyCompleted
	case StateFailed:
		return ErrAlreadyFailed
	}

	if err := fn(ctx); err != nil {
		if markErr := s.MarkFailed(ctx, key, eo.stateTTL); markErr != nil {
			return markErr
		}
		return err
	}

	return s.MarkCompleted(ctx, key, eo.stateTTL)
}

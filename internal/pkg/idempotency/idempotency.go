// Package idempotency records operation state in Redis so a redelivered
// message does its side effect once.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrAlreadyInProgress = errors.New("idempotency: operation in progress")
	ErrAlreadyCompleted  = errors.New("idempotency: operation completed")
	ErrAlreadyFailed     = errors.New("idempotency: operation failed")
	ErrInvalidState      = errors.New("idempotency: invalid state")
)

type State string

const (
	StateNone       State = "none"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

func (s State) String() string { return string(s) }

func (s State) err() error {
	switch s {
	case StateNone:
		return nil
	case StateInProgress:
		return ErrAlreadyInProgress
	case StateCompleted:
		return ErrAlreadyCompleted
	case StateFailed:
		return ErrAlreadyFailed
	default:
		return ErrInvalidState
	}
}

// acquire claims KEYS[1] when it is empty and otherwise returns its state.
var acquire = redis.NewScript(`
local state = redis.call('GET', KEYS[1])
if state then
	return state
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return ''
`)

// StateTracker keeps one Redis string per operation key.
type StateTracker struct {
	client redis.Cmdable
	prefix string
}

// New stores keys under "idempotency:".
func New(client redis.Cmdable) *StateTracker {
	return &StateTracker{client: client, prefix: "idempotency:"}
}

const (
	defaultLockDuration = time.Minute
	defaultStateTTL     = time.Minute
)

type Option func(*execOptions)

type execOptions struct {
	lockDuration   time.Duration
	stateTTL       time.Duration
	releaseOnError bool
}

// WithLockDuration bounds how long an in-progress claim survives a crashed worker.
func WithLockDuration(d time.Duration) Option {
	return func(o *execOptions) { o.lockDuration = d }
}

// WithStateTTL sets how long a completed or failed state is remembered.
func WithStateTTL(d time.Duration) Option {
	return func(o *execOptions) { o.stateTTL = d }
}

// WithReleaseOnError forgets the key when fn fails so the next delivery runs
// fn again instead of seeing ErrAlreadyFailed.
func WithReleaseOnError() Option {
	return func(o *execOptions) { o.releaseOnError = true }
}

// Acquire claims key for lockDuration. StateNone means the caller owns it.
func (s *StateTracker) Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error) {
	got, err := acquire.Run(ctx, s.client, []string{s.prefix + key},
		StateInProgress.String(), lockDuration.Milliseconds()).Text()
	if err != nil {
		return "", fmt.Errorf("idempotency: acquire %s: %w", key, err)
	}
	if got == "" {
		return StateNone, nil
	}

	state := State(got)
	if errors.Is(state.err(), ErrInvalidState) {
		return "", fmt.Errorf("%w %q for %s", ErrInvalidState, got, key)
	}
	return state, nil
}

func (s *StateTracker) mark(ctx context.Context, key string, state State, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, state.String(), ttl).Err()
}

func (s *StateTracker) MarkCompleted(ctx context.Context, key string, ttl time.Duration) error {
	return s.mark(ctx, key, StateCompleted, ttl)
}

func (s *StateTracker) MarkFailed(ctx context.Context, key string, ttl time.Duration) error {
	return s.mark(ctx, key, StateFailed, ttl)
}

// Release forgets any state recorded for key.
func (s *StateTracker) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Exec runs fn unless key already has a live state, in which case the
// matching ErrAlready* error is returned and fn is skipped.
func (s *StateTracker) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	o := execOptions{lockDuration: defaultLockDuration, stateTTL: defaultStateTTL}
	for _, opt := range opts {
		opt(&o)
	}
	o.lockDuration = max(o.lockDuration, time.Millisecond)
	o.stateTTL = max(o.stateTTL, time.Millisecond)

	state, err := s.Acquire(ctx, key, o.lockDuration)
	if err != nil {
		return err
	}
	if err := state.err(); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		if o.releaseOnError {
			return errors.Join(err, s.Release(ctx, key))
		}
		return errors.Join(err, s.MarkFailed(ctx, key, o.stateTTL))
	}
	return s.MarkCompleted(ctx, key, o.stateTTL)
}

package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}
	opt, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("ParseURL() error = %v", err)
	}

	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestExecRunsOnce(t *testing.T) {
	// Arrange
	tracker := New(newRedis(t))
	ctx := context.Background()
	calls := 0
	fn := func(context.Context) error {
		calls++
		return nil
	}

	// Act
	first := tracker.Exec(ctx, "phone_verified:1", fn, WithStateTTL(time.Minute))
	second := tracker.Exec(ctx, "phone_verified:1", fn, WithStateTTL(time.Minute))

	// Assert
	if first != nil {
		t.Fatalf("first Exec() = %v", first)
	}
	if !errors.Is(second, ErrAlreadyCompleted) {
		t.Fatalf("second Exec() = %v, want ErrAlreadyCompleted", second)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestExecReleaseOnError(t *testing.T) {
	// Arrange
	tracker := New(newRedis(t))
	ctx := context.Background()
	errSMTP := errors.New("smtp down")

	// Act
	first := tracker.Exec(ctx, "k", func(context.Context) error { return errSMTP }, WithReleaseOnError())
	second := tracker.Exec(ctx, "k", func(context.Context) error { return nil }, WithReleaseOnError())

	// Assert
	if !errors.Is(first, errSMTP) {
		t.Fatalf("first Exec() = %v", first)
	}
	if second != nil {
		t.Fatalf("second Exec() = %v, want retry to run", second)
	}
}

func TestExecMarksFailed(t *testing.T) {
	// Arrange
	tracker := New(newRedis(t))
	ctx := context.Background()

	// Act
	_ = tracker.Exec(ctx, "k", func(context.Context) error { return errors.New("x") })
	state, err := tracker.Acquire(ctx, "k", time.Second)

	// Assert
	if err != nil || state != StateFailed {
		t.Fatalf("Acquire() = %s, %v", state, err)
	}
}

func TestAcquireInProgress(t *testing.T) {
	// Arrange
	tracker := New(newRedis(t))
	ctx := context.Background()

	// Act
	first, err := tracker.Acquire(ctx, "claim", time.Minute)
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	second, err := tracker.Acquire(ctx, "claim", time.Minute)

	// Assert
	if first != StateNone {
		t.Errorf("first Acquire() = %s, want none", first)
	}
	if err != nil || second != StateInProgress {
		t.Fatalf("second Acquire() = %s, %v", second, err)
	}
	execErr := tracker.Exec(ctx, "claim", func(context.Context) error { return nil })
	if !errors.Is(execErr, ErrAlreadyInProgress) {
		t.Errorf("Exec() = %v, want ErrAlreadyInProgress", execErr)
	}
}

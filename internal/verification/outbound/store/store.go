// Package store keeps the pending codes of the self-hosted delivery backend.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

var (
	// ErrNotFound is returned when no code is stored for a subject.
	ErrNotFound = errors.New("store: pending code not found")
	// ErrUnknownDriver is returned by New for an unsupported driver.
	ErrUnknownDriver = errors.New("store: unknown driver")
	// ErrRedisRequired is returned when the redis driver is chosen without a client.
	ErrRedisRequired = errors.New("store: redis client is required")
)

// Options configures New.
type Options struct {
	// Retention keeps a code readable this long after it expires, so callers
	// can tell "expired" from "never sent".
	Retention time.Duration
	Clock     clock.Clocker
	Redis     redis.Cmdable
}

// New builds a code store for driver.
func New(driver string, opts Options) (CodeStore, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		return NewMemory(opts.Clock, opts.Retention), nil
	case DriverRedis:
		if opts.Redis == nil {
			return nil, ErrRedisRequired
		}
		return NewRedis(opts.Redis, opts.Clock, opts.Retention), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

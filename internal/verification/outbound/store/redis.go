package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
)

const redisKeyPrefix = "verification:code:"

// Redis is a CodeStore shared by every instance of the service.
type Redis struct {
	client    redis.Cmdable
	clock     clock.Clocker
	retention time.Duration
}

// NewRedis returns a Redis store. Keys expire retention after the code does.
func NewRedis(client redis.Cmdable, clk clock.Clocker, retention time.Duration) *Redis {
	if clk == nil {
		clk = clock.New()
	}

	return &Redis{client: client, clock: clk, retention: retention}
}

func (r *Redis) Put(ctx context.Context, code entity.PendingCode) error {
	payload, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("store: marshal pending code: %w", err)
	}

	ttl := code.ExpiresAt.Sub(r.clock.Now()) + r.retention
	if ttl <= 0 {
		ttl = time.Second
	}

	if err := r.client.Set(ctx, redisKeyPrefix+code.Subject, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store: redis set: %w", err)
	}

	return nil
}

func (r *Redis) Get(ctx context.Context, subject string) (*entity.PendingCode, error) {
	payload, err := r.client.Get(ctx, redisKeyPrefix+subject).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: redis get: %w", err)
	}

	var code entity.PendingCode
	if err := json.Unmarshal(payload, &code); err != nil {
		return nil, fmt.Errorf("store: unmarshal pending code: %w", err)
	}

	return &code, nil
}

func (r *Redis) Delete(ctx context.Context, subject string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+subject).Err(); err != nil {
		return fmt.Errorf("store: redis del: %w", err)
	}

	return nil
}

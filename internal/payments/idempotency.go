package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tech4loop/marketplace-backend/pkg/redis"
)

// IdempotencyGuard remembers payment states that were fully processed so
// replays skip the gateway-driven update. Keys are written only after
// success; an interrupted delivery leaves nothing behind.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, scope: scope}, nil
}

// Seen reports whether key was already marked as processed.
func (g *IdempotencyGuard) Seen(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("idempotency key is required")
	}
	value, err := g.store.Get(ctx, g.store.IdempotencyKey(g.scope, key))
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get idempotency key: %w", err)
	}
	return value != "", nil
}

// Mark records key as processed for the guard's TTL.
func (g *IdempotencyGuard) Mark(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("idempotency key is required")
	}
	if _, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, key), "1", g.ttl); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}

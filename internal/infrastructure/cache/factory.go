// Package cache provides the Redis backed coordination primitives of the
// service, with in-process fallbacks for single-instance deployments.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/leasepay/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LeaseLocker is implemented by RedisLeaseLocker and InMemoryLeaseLocker
type LeaseLocker interface {
	Acquire(ctx context.Context, orgID, leaseID uuid.UUID, ttl, wait time.Duration) (func(), error)
}

var (
	_ LeaseLocker = (*RedisLeaseLocker)(nil)
	_ LeaseLocker = (*InMemoryLeaseLocker)(nil)
)

// Backends is what the cache layer hands to the rest of the service
type Backends struct {
	// Client is nil when Redis is not in use
	Client      *redis.Client
	Idempotency shared.IdempotencyStore
	Locker      LeaseLocker
}

// Close releases the Redis client and the in-memory sweeper
func (b *Backends) Close() error {
	if b.Idempotency != nil {
		_ = b.Idempotency.Close()
	}
	if b.Client != nil {
		return b.Client.Close()
	}
	return nil
}

// Ping checks Redis, or succeeds when Redis is not in use
func (b *Backends) Ping(ctx context.Context) error {
	if b.Client == nil {
		return nil
	}
	return b.Client.Ping(ctx).Err()
}

// NewRedisClient connects to Redis and pings it
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// NewBackends builds Redis backed stores when Redis is configured. When it
// is not configured, or unreachable outside production, in-memory stores
// are used instead.
func NewBackends(cfg config.RedisConfig, production bool, logger *zap.Logger) (*Backends, error) {
	if !cfg.Enabled() {
		logger.Info("redis not configured, using in-memory lease lock and idempotency store")
		return newInMemoryBackends(), nil
	}

	client, err := NewRedisClient(cfg)
	if err != nil {
		if production {
			return nil, err
		}
		logger.Warn("redis unavailable, falling back to in-memory stores; "+
			"lease locks are not shared between instances", zap.Error(err))
		return newInMemoryBackends(), nil
	}

	logger.Info("using redis lease lock and idempotency store", zap.String("addr", cfg.Addr()))
	return &Backends{
		Client:      client,
		Idempotency: NewRedisIdempotencyStore(client, ""),
		Locker:      NewRedisLeaseLocker(client, logger),
	}, nil
}

func newInMemoryBackends() *Backends {
	return &Backends{
		Idempotency: NewInMemoryIdempotencyStore(),
		Locker:      NewInMemoryLeaseLocker(),
	}
}

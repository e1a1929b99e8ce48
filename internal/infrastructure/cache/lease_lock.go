package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	leaseLockPrefix   = "leasepay:lease-lock:"
	lockRetryInterval = 25 * time.Millisecond
)

// releaseScript deletes the lock only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLeaseLocker serializes allocation passes on a lease across instances.
// The lock is a key set with NX and a TTL; the TTL bounds how long a
// crashed holder can block the lease.
type RedisLeaseLocker struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewRedisLeaseLocker creates a locker on an existing client
func NewRedisLeaseLocker(client redis.UniversalClient, logger *zap.Logger) *RedisLeaseLocker {
	return &RedisLeaseLocker{client: client, logger: logger}
}

// Acquire polls SET NX until it wins or wait elapses
func (l *RedisLeaseLocker) Acquire(ctx context.Context, orgID, leaseID uuid.UUID, ttl, wait time.Duration) (func(), error) {
	key := leaseLockKey(orgID, leaseID)
	token, err := newLockToken()
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lease lock: %w", err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		if !time.Now().Before(deadline) {
			return nil, shared.ErrLeaseBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (l *RedisLeaseLocker) release(key, token string) {
	// the request context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		l.logger.Warn("failed to release lease lock", zap.String("key", key), zap.Error(err))
	}
}

// InMemoryLeaseLocker serializes allocation passes within one process
type InMemoryLeaseLocker struct {
	mu    sync.Mutex
	slots map[string]*leaseSlot
}

// leaseSlot is held by at most one pass. refs counts the holder and the
// waiters; the slot is dropped when it reaches zero.
type leaseSlot struct {
	ch   chan struct{}
	refs int
}

// NewInMemoryLeaseLocker creates an in-process locker
func NewInMemoryLeaseLocker() *InMemoryLeaseLocker {
	return &InMemoryLeaseLocker{slots: make(map[string]*leaseSlot)}
}

// Acquire waits up to wait for the lease's slot. The ttl is ignored: the
// holder always releases in-process.
func (l *InMemoryLeaseLocker) Acquire(ctx context.Context, orgID, leaseID uuid.UUID, _ time.Duration, wait time.Duration) (func(), error) {
	key := leaseLockKey(orgID, leaseID)
	slot := l.join(key)
	var once sync.Once
	release := func() {
		once.Do(func() {
			<-slot.ch
			l.leave(key, slot)
		})
	}

	select {
	case slot.ch <- struct{}{}:
		return release, nil
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case slot.ch <- struct{}{}:
		return release, nil
	case <-timer.C:
		l.leave(key, slot)
		return nil, shared.ErrLeaseBusy
	case <-ctx.Done():
		l.leave(key, slot)
		return nil, ctx.Err()
	}
}

// Len returns the number of leases with a holder or a waiter
func (l *InMemoryLeaseLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *InMemoryLeaseLocker) join(key string) *leaseSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &leaseSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *InMemoryLeaseLocker) leave(key string, s *leaseSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func leaseLockKey(orgID, leaseID uuid.UUID) string {
	return leaseLockPrefix + orgID.String() + ":" + leaseID.String()
}

func newLockToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

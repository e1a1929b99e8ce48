package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLeaseLocker_Exclusive(t *testing.T) {
	locker := NewInMemoryLeaseLocker()
	ctx := context.Background()
	orgID, leaseID := uuid.New(), uuid.New()

	release, err := locker.Acquire(ctx, orgID, leaseID, time.Second, 10*time.Millisecond)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, orgID, leaseID, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, err, shared.ErrLeaseBusy)

	other, err := locker.Acquire(ctx, orgID, uuid.New(), time.Second, 10*time.Millisecond)
	require.NoError(t, err, "other leases are independent")
	other()

	release()
	release() // idempotent

	again, err := locker.Acquire(ctx, orgID, leaseID, time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	again()
}

func TestInMemoryLeaseLocker_WaitsForHolder(t *testing.T) {
	locker := NewInMemoryLeaseLocker()
	ctx := context.Background()
	orgID, leaseID := uuid.New(), uuid.New()

	release, err := locker.Acquire(ctx, orgID, leaseID, time.Second, time.Second)
	require.NoError(t, err)
	time.AfterFunc(20*time.Millisecond, release)

	second, err := locker.Acquire(ctx, orgID, leaseID, time.Second, time.Second)
	require.NoError(t, err)
	second()
}

func TestInMemoryLeaseLocker_ContextCancelled(t *testing.T) {
	locker := NewInMemoryLeaseLocker()
	orgID, leaseID := uuid.New(), uuid.New()

	release, err := locker.Acquire(context.Background(), orgID, leaseID, time.Second, time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Acquire(ctx, orgID, leaseID, time.Second, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryLeaseLocker_SerializesCriticalSection(t *testing.T) {
	locker := NewInMemoryLeaseLocker()
	orgID, leaseID := uuid.New(), uuid.New()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), orgID, leaseID, time.Second, 5*time.Second)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestInMemoryLeaseLocker_DropsIdleSlots(t *testing.T) {
	locker := NewInMemoryLeaseLocker()
	ctx := context.Background()
	orgID := uuid.New()

	for i := 0; i < 100; i++ {
		release, err := locker.Acquire(ctx, orgID, uuid.New(), time.Second, time.Millisecond)
		require.NoError(t, err)
		release()
	}
	assert.Zero(t, locker.Len())

	leaseID := uuid.New()
	release, err := locker.Acquire(ctx, orgID, leaseID, time.Second, time.Millisecond)
	require.NoError(t, err)
	_, err = locker.Acquire(ctx, orgID, leaseID, time.Second, time.Millisecond)
	require.ErrorIs(t, err, shared.ErrLeaseBusy)
	assert.Equal(t, 1, locker.Len(), "the timed-out waiter leaves, the holder stays")

	release()
	release()
	assert.Zero(t, locker.Len())
}

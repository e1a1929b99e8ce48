package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/leasepay/backend/internal/infrastructure/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOutboxEntry(t *testing.T, orgID uuid.UUID) *shared.OutboxEntry {
	t.Helper()
	p, err := payment.NewPayment(orgID, uuid.New(), uuid.New(), uuid.New(), dec("10.00"), payment.GatewayCash, "", "", time.Time{})
	require.NoError(t, err)
	ev := p.GetDomainEvents()[0]
	payload, err := event.NewPaymentEventSerializer().Serialize(ev)
	require.NoError(t, err)
	return shared.NewOutboxEntry(ev, payload)
}

func TestGormOutboxRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()
	orgID := uuid.New()

	first := newTestOutboxEntry(t, orgID)
	second := newTestOutboxEntry(t, orgID)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, repo.Save(ctx, first, second))
	require.NoError(t, repo.Save(ctx))

	due, err := repo.FindDue(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, first.ID, due[0].ID)
	assert.Equal(t, payment.EventTypePaymentRecorded, due[0].EventType)
	assert.JSONEq(t, string(first.Payload), string(due[0].Payload))

	claimed, err := repo.Claim(ctx, []uuid.UUID{first.ID, second.ID})
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	for _, e := range claimed {
		assert.Equal(t, shared.OutboxStatusProcessing, e.Status)
	}

	t.Run("claimed entries are not due and cannot be claimed again", func(t *testing.T) {
		due, err := repo.FindDue(ctx, time.Now(), 10)
		require.NoError(t, err)
		assert.Empty(t, due)

		again, err := repo.Claim(ctx, []uuid.UUID{first.ID})
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("failed entries come back once their retry is due", func(t *testing.T) {
		entry := claimed[1]
		entry.MarkFailed("handler down")
		require.NoError(t, repo.Update(ctx, entry))

		due, err := repo.FindDue(ctx, time.Now(), 10)
		require.NoError(t, err)
		assert.Empty(t, due)

		due, err = repo.FindDue(ctx, time.Now().Add(time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, entry.ID, due[0].ID)
		assert.Equal(t, 1, due[0].Attempts)
		assert.Equal(t, "handler down", due[0].LastError)
	})

	t.Run("sent entries are counted and cleaned up", func(t *testing.T) {
		entry := claimed[0]
		entry.MarkSent()
		require.NoError(t, repo.Update(ctx, entry))

		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[shared.OutboxStatusSent])
		assert.Equal(t, int64(1), counts[shared.OutboxStatusFailed])

		deleted, err := repo.DeleteSentBefore(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, deleted)

		deleted, err = repo.DeleteSentBefore(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})
}

func TestGormOutboxRepository_FindDueRespectsLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()
	orgID := uuid.New()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, newTestOutboxEntry(t, orgID)))
	}

	due, err := repo.FindDue(ctx, time.Now(), 3)
	require.NoError(t, err)
	assert.Len(t, due, 3)

	claimed, err := repo.Claim(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestGormOutboxRepository_DeadLetters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()
	orgID := uuid.New()

	live := newTestOutboxEntry(t, orgID)
	dead := newTestOutboxEntry(t, orgID)
	dead.MaxAttempts = 1
	dead.MarkFailed("consumer rejected payload")
	require.True(t, dead.IsDead())
	require.NoError(t, repo.Save(ctx, live, dead))

	entries, total, err := repo.FindDead(ctx, shared.Filter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, dead.ID, entries[0].ID)
	assert.Equal(t, "consumer rejected payload", entries[0].LastError)

	found, err := repo.FindByID(ctx, dead.ID)
	require.NoError(t, err)
	require.NoError(t, found.ResetForRetry())
	require.NoError(t, repo.Update(ctx, found))

	_, total, err = repo.FindDead(ctx, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

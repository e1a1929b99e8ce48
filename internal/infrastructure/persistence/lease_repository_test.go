package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/leasing"
	"github.com/leasepay/backend/internal/domain/policy"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormLeaseRepository_SaveAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLeaseRepository(db)
	ctx := context.Background()
	f := newFixture(t, db)

	t.Run("round trips the lease and keeps tenant order", func(t *testing.T) {
		found, err := repo.FindByID(ctx, f.orgID, f.lease.ID)
		require.NoError(t, err)
		assert.Equal(t, f.lease.ID, found.ID)
		assert.Equal(t, "Unit 4B", found.Name)
		assert.Equal(t, leasing.LeaseStatusActive, found.Status)
		assert.Equal(t, []uuid.UUID{f.tenantA, f.tenantB}, found.TenantIDs)
		assert.True(t, found.PolicyOverride.IsEmpty())
		assert.Equal(t, 1, found.Version)
	})

	t.Run("is scoped to the organization", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New(), f.lease.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("for update reads the same lease", func(t *testing.T) {
		found, err := repo.FindByIDForUpdate(ctx, f.orgID, f.lease.ID)
		require.NoError(t, err)
		assert.Equal(t, f.lease.ID, found.ID)
	})

	t.Run("save replaces the tenant list", func(t *testing.T) {
		tenantC := uuid.New()
		f.lease.TenantIDs = []uuid.UUID{tenantC, f.tenantA}
		require.NoError(t, repo.Save(ctx, f.lease))

		found, err := repo.FindByID(ctx, f.orgID, f.lease.ID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{tenantC, f.tenantA}, found.TenantIDs)
	})
}

func TestGormLeaseRepository_SaveWithLock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLeaseRepository(db)
	ctx := context.Background()
	f := newFixture(t, db)

	allowSplit := false
	minPartial := dec("25.00")
	require.NoError(t, f.lease.SetPolicyOverride(policy.Settings{AllowSplit: &allowSplit, MinPartialUSD: &minPartial}))
	require.NoError(t, repo.SaveWithLock(ctx, f.lease))

	found, err := repo.FindByID(ctx, f.orgID, f.lease.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.Version)
	assert.Nil(t, found.PolicyOverride.AllowPartial)
	require.NotNil(t, found.PolicyOverride.AllowSplit)
	assert.False(t, *found.PolicyOverride.AllowSplit)
	require.NotNil(t, found.PolicyOverride.MinPartialUSD)
	assert.True(t, found.PolicyOverride.MinPartialUSD.Equal(minPartial))

	t.Run("stale version is a conflict", func(t *testing.T) {
		stale := *found
		found.ClearPolicyOverride()
		require.NoError(t, repo.SaveWithLock(ctx, found))

		stale.ClearPolicyOverride()
		err := repo.SaveWithLock(ctx, &stale)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})
}

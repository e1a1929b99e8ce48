package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/leasing"
	"github.com/leasepay/backend/internal/domain/policy"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockPolicyRepository struct {
	mock.Mock
}

func (m *MockPolicyRepository) FindGlobal(ctx context.Context, orgID uuid.UUID) (*policy.PaymentPolicy, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*policy.PaymentPolicy), args.Error(1)
}

func (m *MockPolicyRepository) FindByProperty(ctx context.Context, orgID, propertyID uuid.UUID) (*policy.PaymentPolicy, error) {
	args := m.Called(ctx, orgID, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*policy.PaymentPolicy), args.Error(1)
}

func (m *MockPolicyRepository) Save(ctx context.Context, p *policy.PaymentPolicy) error {
	return m.Called(ctx, p).Error(0)
}

type MockLeaseRepository struct {
	mock.Mock
}

func (m *MockLeaseRepository) FindByID(ctx context.Context, orgID, id uuid.UUID) (*leasing.Lease, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*leasing.Lease), args.Error(1)
}

func (m *MockLeaseRepository) FindByIDForUpdate(ctx context.Context, orgID, id uuid.UUID) (*leasing.Lease, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*leasing.Lease), args.Error(1)
}

func (m *MockLeaseRepository) Save(ctx context.Context, lease *leasing.Lease) error {
	return m.Called(ctx, lease).Error(0)
}

func (m *MockLeaseRepository) SaveWithLock(ctx context.Context, lease *leasing.Lease) error {
	return m.Called(ctx, lease).Error(0)
}

func boolPtr(b bool) *bool { return &b }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newLease(t *testing.T, orgID uuid.UUID) *leasing.Lease {
	t.Helper()
	lease, err := leasing.NewLease(orgID, uuid.New(), "Unit 1", time.Now(), []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	return lease
}

func TestResolveForLease(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()

	t.Run("missing rows fall back to defaults", func(t *testing.T) {
		lease := newLease(t, orgID)
		repo := new(MockPolicyRepository)
		repo.On("FindByProperty", ctx, orgID, lease.PropertyID).Return(nil, shared.ErrNotFound)
		repo.On("FindGlobal", ctx, orgID).Return(nil, shared.ErrNotFound)

		eff, err := ResolveForLease(ctx, repo, lease)
		require.NoError(t, err)
		assert.Equal(t, policy.DefaultPolicy(), eff)
	})

	t.Run("lease beats property beats global per field", func(t *testing.T) {
		lease := newLease(t, orgID)
		require.NoError(t, lease.SetPolicyOverride(policy.Settings{AllowSplit: boolPtr(false)}))
		property, err := policy.NewPropertyPolicy(orgID, lease.PropertyID, policy.Settings{
			AllowSplit:    boolPtr(true),
			MinPartialUSD: decPtr("25"),
		})
		require.NoError(t, err)
		global, err := policy.NewGlobalPolicy(orgID, policy.Settings{
			AllowPartial:  boolPtr(false),
			MinPartialUSD: decPtr("50"),
		})
		require.NoError(t, err)

		repo := new(MockPolicyRepository)
		repo.On("FindByProperty", ctx, orgID, lease.PropertyID).Return(property, nil)
		repo.On("FindGlobal", ctx, orgID).Return(global, nil)

		eff, err := ResolveForLease(ctx, repo, lease)
		require.NoError(t, err)
		assert.False(t, eff.AllowSplit)
		assert.Equal(t, policy.SourceLease, eff.Sources.AllowSplit)
		assert.False(t, eff.AllowPartial)
		assert.Equal(t, policy.SourceGlobal, eff.Sources.AllowPartial)
		assert.True(t, eff.MinPartialUSD.Equal(decimal.NewFromInt(25)))
		assert.Equal(t, policy.SourceProperty, eff.Sources.MinPartialUSD)
	})

	t.Run("store failures are returned", func(t *testing.T) {
		lease := newLease(t, orgID)
		boom := shared.NewPersistenceError("load policy", errors.New("connection reset"))
		repo := new(MockPolicyRepository)
		repo.On("FindByProperty", ctx, orgID, lease.PropertyID).Return(nil, boom)

		_, err := ResolveForLease(ctx, repo, lease)
		assert.ErrorIs(t, err, shared.ErrPersistenceFailure)
	})
}

func TestPolicyService_UpsertGlobal(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()

	t.Run("creates the row when none exists", func(t *testing.T) {
		repo := new(MockPolicyRepository)
		repo.On("FindGlobal", ctx, orgID).Return(nil, shared.ErrNotFound)
		repo.On("Save", ctx, mock.MatchedBy(func(p *policy.PaymentPolicy) bool {
			return p.Scope == policy.ScopeGlobal && p.PropertyID == nil && !*p.Settings.AllowPartial
		})).Return(nil)

		svc := NewPolicyService(repo, new(MockLeaseRepository), zap.NewNop())
		resp, err := svc.UpsertGlobal(ctx, orgID, SettingsRequest{AllowPartial: boolPtr(false)})
		require.NoError(t, err)
		assert.Equal(t, "GLOBAL", resp.Scope)
		assert.Equal(t, 1, resp.Version)
		repo.AssertExpectations(t)
	})

	t.Run("updates the existing row", func(t *testing.T) {
		existing, err := policy.NewGlobalPolicy(orgID, policy.Settings{AllowPartial: boolPtr(true)})
		require.NoError(t, err)
		repo := new(MockPolicyRepository)
		repo.On("FindGlobal", ctx, orgID).Return(existing, nil)
		repo.On("Save", ctx, existing).Return(nil)

		svc := NewPolicyService(repo, new(MockLeaseRepository), zap.NewNop())
		resp, err := svc.UpsertGlobal(ctx, orgID, SettingsRequest{MinPartialUSD: decPtr("15")})
		require.NoError(t, err)
		assert.Equal(t, existing.ID, resp.ID)
		assert.Equal(t, 2, resp.Version)
		assert.Nil(t, resp.Settings.AllowPartial)
		assert.True(t, resp.Settings.MinPartialUSD.Equal(decimal.NewFromInt(15)))
	})

	t.Run("rejects a negative minimum", func(t *testing.T) {
		repo := new(MockPolicyRepository)
		repo.On("FindGlobal", ctx, orgID).Return(nil, shared.ErrNotFound)

		svc := NewPolicyService(repo, new(MockLeaseRepository), zap.NewNop())
		_, err := svc.UpsertGlobal(ctx, orgID, SettingsRequest{MinPartialUSD: decPtr("-1")})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestPolicyService_UpsertProperty(t *testing.T) {
	ctx := context.Background()
	orgID, propertyID := uuid.New(), uuid.New()

	repo := new(MockPolicyRepository)
	repo.On("FindByProperty", ctx, orgID, propertyID).Return(nil, shared.ErrNotFound)
	repo.On("Save", ctx, mock.AnythingOfType("*policy.PaymentPolicy")).Return(nil)

	svc := NewPolicyService(repo, new(MockLeaseRepository), zap.NewNop())
	resp, err := svc.UpsertProperty(ctx, orgID, propertyID, SettingsRequest{AllowSplit: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "PROPERTY", resp.Scope)
	require.NotNil(t, resp.PropertyID)
	assert.Equal(t, propertyID, *resp.PropertyID)
}

func TestPolicyService_LeaseOverride(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()

	setup := func(t *testing.T) (*PolicyService, *MockLeaseRepository, *leasing.Lease) {
		lease := newLease(t, orgID)
		leases := new(MockLeaseRepository)
		leases.On("FindByID", ctx, orgID, lease.ID).Return(lease, nil)
		policies := new(MockPolicyRepository)
		policies.On("FindByProperty", ctx, orgID, lease.PropertyID).Return(nil, shared.ErrNotFound)
		global, err := policy.NewGlobalPolicy(orgID, policy.Settings{AllowPartial: boolPtr(false)})
		require.NoError(t, err)
		policies.On("FindGlobal", ctx, orgID).Return(global, nil)
		return NewPolicyService(policies, leases, zap.NewNop()), leases, lease
	}

	t.Run("set overrides the global value", func(t *testing.T) {
		svc, leases, lease := setup(t)
		leases.On("SaveWithLock", ctx, lease).Return(nil)

		resp, err := svc.SetLeaseOverride(ctx, orgID, lease.ID, SettingsRequest{AllowPartial: boolPtr(true)})
		require.NoError(t, err)
		assert.True(t, resp.Effective.AllowPartial)
		assert.Equal(t, "lease", resp.Effective.Sources.AllowPartial)
		assert.Nil(t, resp.Property)
		require.NotNil(t, resp.Global)
		assert.Equal(t, 2, lease.Version)
	})

	t.Run("clear falls back to the global value", func(t *testing.T) {
		svc, leases, lease := setup(t)
		require.NoError(t, lease.SetPolicyOverride(policy.Settings{AllowPartial: boolPtr(true)}))
		leases.On("SaveWithLock", ctx, lease).Return(nil)

		resp, err := svc.ClearLeaseOverride(ctx, orgID, lease.ID)
		require.NoError(t, err)
		assert.False(t, resp.Effective.AllowPartial)
		assert.Equal(t, "global", resp.Effective.Sources.AllowPartial)
		assert.Nil(t, resp.Override.AllowPartial)
	})

	t.Run("a concurrent update is reported", func(t *testing.T) {
		svc, leases, lease := setup(t)
		leases.On("SaveWithLock", ctx, lease).Return(shared.ErrConcurrencyConflict)

		_, err := svc.SetLeaseOverride(ctx, orgID, lease.ID, SettingsRequest{AllowSplit: boolPtr(false)})
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("unknown lease", func(t *testing.T) {
		leases := new(MockLeaseRepository)
		missing := uuid.New()
		leases.On("FindByID", ctx, orgID, missing).Return(nil, shared.ErrNotFound)
		svc := NewPolicyService(new(MockPolicyRepository), leases, zap.NewNop())

		_, err := svc.GetLeasePolicy(ctx, orgID, missing)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

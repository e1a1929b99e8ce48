package leasing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/leasing"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

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

func TestLeaseService_Create(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	tenant := uuid.New()

	t.Run("saves an active lease", func(t *testing.T) {
		leases := new(MockLeaseRepository)
		leases.On("Save", ctx, mock.AnythingOfType("*leasing.Lease")).Return(nil)
		svc := NewLeaseService(leases, new(MockActivityRepository), zap.NewNop())

		resp, err := svc.Create(ctx, orgID, CreateLeaseInput{
			PropertyID: uuid.New(),
			Name:       "  Unit 2A ",
			StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			TenantIDs:  []uuid.UUID{tenant, tenant},
		})
		require.NoError(t, err)
		assert.Equal(t, "Unit 2A", resp.Name)
		assert.Equal(t, "ACTIVE", resp.Status)
		assert.Equal(t, []uuid.UUID{tenant}, resp.TenantIDs)
		assert.False(t, resp.HasPolicy)
		leases.AssertExpectations(t)
	})

	t.Run("rejects a missing property", func(t *testing.T) {
		leases := new(MockLeaseRepository)
		svc := NewLeaseService(leases, new(MockActivityRepository), zap.NewNop())

		_, err := svc.Create(ctx, orgID, CreateLeaseInput{Name: "Unit 2A", TenantIDs: []uuid.UUID{tenant}})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		leases.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestLeaseService_End(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	lease, err := leasing.NewLease(orgID, uuid.New(), "Unit 9", time.Now(), []uuid.UUID{uuid.New()})
	require.NoError(t, err)

	leases := new(MockLeaseRepository)
	leases.On("FindByID", ctx, orgID, lease.ID).Return(lease, nil)
	leases.On("SaveWithLock", ctx, lease).Return(nil)
	svc := NewLeaseService(leases, new(MockActivityRepository), zap.NewNop())

	resp, err := svc.End(ctx, orgID, lease.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "ENDED", resp.Status)
	assert.NotNil(t, resp.EndDate)

	_, err = svc.End(ctx, orgID, lease.ID, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestLeaseService_ListActivity(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	lease, err := leasing.NewLease(orgID, uuid.New(), "Unit 9", time.Now(), []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	filter := shared.Filter{Page: 1, PageSize: 2}

	leases := new(MockLeaseRepository)
	leases.On("FindByID", ctx, orgID, lease.ID).Return(lease, nil)
	activities := new(MockActivityRepository)
	activities.On("ListByLease", ctx, orgID, lease.ID, filter).Return([]*leasing.Activity{
		{ID: uuid.New(), EventType: "payment.allocated", Summary: "second"},
		{ID: uuid.New(), EventType: "payment.recorded", Summary: "first"},
	}, int64(3), nil)

	svc := NewLeaseService(leases, activities, zap.NewNop())
	page, err := svc.ListActivity(ctx, orgID, lease.ID, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "second", page.Items[0].Summary)

	missing := uuid.New()
	leases.On("FindByID", ctx, orgID, missing).Return(nil, shared.ErrNotFound)
	_, err = svc.ListActivity(ctx, orgID, missing, filter)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// Package leasing manages leases and their activity log.
package leasing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/leasing"
	"github.com/leasepay/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LeaseService creates and reads leases
type LeaseService struct {
	leaseRepo    leasing.LeaseRepository
	activityRepo leasing.ActivityRepository
	logger       *zap.Logger
}

// NewLeaseService creates a new LeaseService
func NewLeaseService(leaseRepo leasing.LeaseRepository, activityRepo leasing.ActivityRepository, logger *zap.Logger) *LeaseService {
	return &LeaseService{
		leaseRepo:    leaseRepo,
		activityRepo: activityRepo,
		logger:       logger,
	}
}

// Create creates an active lease
func (s *LeaseService) Create(ctx context.Context, orgID uuid.UUID, in CreateLeaseInput) (*LeaseResponse, error) {
	lease, err := leasing.NewLease(orgID, in.PropertyID, in.Name, in.StartDate, in.TenantIDs)
	if err != nil {
		return nil, err
	}
	if err := s.leaseRepo.Save(ctx, lease); err != nil {
		return nil, err
	}
	s.logger.Info("Lease created",
		zap.String("org_id", orgID.String()),
		zap.String("lease_id", lease.ID.String()),
		zap.Int("tenants", len(lease.TenantIDs)),
	)
	resp := ToLeaseResponse(lease)
	return &resp, nil
}

// Get returns a lease
func (s *LeaseService) Get(ctx context.Context, orgID, leaseID uuid.UUID) (*LeaseResponse, error) {
	lease, err := s.leaseRepo.FindByID(ctx, orgID, leaseID)
	if err != nil {
		return nil, err
	}
	resp := ToLeaseResponse(lease)
	return &resp, nil
}

// End ends a lease. Its outstanding invoices still accept payments.
func (s *LeaseService) End(ctx context.Context, orgID, leaseID uuid.UUID, at time.Time) (*LeaseResponse, error) {
	lease, err := s.leaseRepo.FindByID(ctx, orgID, leaseID)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = time.Now()
	}
	if err := lease.End(at); err != nil {
		return nil, err
	}
	if err := s.leaseRepo.SaveWithLock(ctx, lease); err != nil {
		return nil, err
	}
	s.logger.Info("Lease ended", zap.String("lease_id", leaseID.String()))
	resp := ToLeaseResponse(lease)
	return &resp, nil
}

// ListActivity pages the lease's activity log, newest first
func (s *LeaseService) ListActivity(ctx context.Context, orgID, leaseID uuid.UUID, filter shared.Filter) (*shared.Paginated[ActivityResponse], error) {
	if _, err := s.leaseRepo.FindByID(ctx, orgID, leaseID); err != nil {
		return nil, err
	}
	entries, total, err := s.activityRepo.ListByLease(ctx, orgID, leaseID, filter)
	if err != nil {
		return nil, err
	}
	result := shared.NewPaginated(ToActivityResponses(entries), total, filter.Page, filter.PageSize)
	return &result, nil
}

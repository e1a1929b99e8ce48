// Package policy manages stored payment policies and resolves the policy
// in effect for a lease.
package policy

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/leasing"
	"github.com/leasepay/backend/internal/domain/policy"
	"github.com/leasepay/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Levels holds the stored rows that apply to a lease. Missing rows are nil.
type Levels struct {
	Property *policy.PaymentPolicy
	Global   *policy.PaymentPolicy
}

// LoadLevels reads the property and global rows of a lease. A level that
// is not configured is not an error.
func LoadLevels(ctx context.Context, repo policy.PolicyRepository, lease *leasing.Lease) (Levels, error) {
	var levels Levels
	property, err := repo.FindByProperty(ctx, lease.OrgID, lease.PropertyID)
	switch {
	case err == nil:
		levels.Property = property
	case !errors.Is(err, shared.ErrNotFound):
		return Levels{}, err
	}
	global, err := repo.FindGlobal(ctx, lease.OrgID)
	switch {
	case err == nil:
		levels.Global = global
	case !errors.Is(err, shared.ErrNotFound):
		return Levels{}, err
	}
	return levels, nil
}

// ResolveForLease returns the policy in effect for a lease
func ResolveForLease(ctx context.Context, repo policy.PolicyRepository, lease *leasing.Lease) (policy.EffectivePolicy, error) {
	levels, err := LoadLevels(ctx, repo, lease)
	if err != nil {
		return policy.EffectivePolicy{}, err
	}
	return policy.Resolve(lease.PolicyOverride, levels.Property, levels.Global), nil
}

// PolicyService manages global, property and lease level policies
type PolicyService struct {
	policyRepo policy.PolicyRepository
	leaseRepo  leasing.LeaseRepository
	logger     *zap.Logger
}

// NewPolicyService creates a new PolicyService
func NewPolicyService(policyRepo policy.PolicyRepository, leaseRepo leasing.LeaseRepository, logger *zap.Logger) *PolicyService {
	return &PolicyService{
		policyRepo: policyRepo,
		leaseRepo:  leaseRepo,
		logger:     logger,
	}
}

// GetGlobal returns the organization-wide policy row
func (s *PolicyService) GetGlobal(ctx context.Context, orgID uuid.UUID) (*PolicyResponse, error) {
	p, err := s.policyRepo.FindGlobal(ctx, orgID)
	if err != nil {
		return nil, err
	}
	resp := ToPolicyResponse(p)
	return &resp, nil
}

// UpsertGlobal creates or replaces the organization-wide policy row
func (s *PolicyService) UpsertGlobal(ctx context.Context, orgID uuid.UUID, req SettingsRequest) (*PolicyResponse, error) {
	p, err := s.policyRepo.FindGlobal(ctx, orgID)
	switch {
	case err == nil:
		if err := p.Update(req.ToSettings()); err != nil {
			return nil, err
		}
	case errors.Is(err, shared.ErrNotFound):
		if p, err = policy.NewGlobalPolicy(orgID, req.ToSettings()); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	if err := s.policyRepo.Save(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("Global payment policy saved",
		zap.String("org_id", orgID.String()),
		zap.Int("version", p.Version),
	)
	resp := ToPolicyResponse(p)
	return &resp, nil
}

// GetProperty returns the policy row of a property
func (s *PolicyService) GetProperty(ctx context.Context, orgID, propertyID uuid.UUID) (*PolicyResponse, error) {
	p, err := s.policyRepo.FindByProperty(ctx, orgID, propertyID)
	if err != nil {
		return nil, err
	}
	resp := ToPolicyResponse(p)
	return &resp, nil
}

// UpsertProperty creates or replaces the policy row of a property
func (s *PolicyService) UpsertProperty(ctx context.Context, orgID, propertyID uuid.UUID, req SettingsRequest) (*PolicyResponse, error) {
	p, err := s.policyRepo.FindByProperty(ctx, orgID, propertyID)
	switch {
	case err == nil:
		if err := p.Update(req.ToSettings()); err != nil {
			return nil, err
		}
	case errors.Is(err, shared.ErrNotFound):
		if p, err = policy.NewPropertyPolicy(orgID, propertyID, req.ToSettings()); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	if err := s.policyRepo.Save(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("Property payment policy saved",
		zap.String("org_id", orgID.String()),
		zap.String("property_id", propertyID.String()),
		zap.Int("version", p.Version),
	)
	resp := ToPolicyResponse(p)
	return &resp, nil
}

// GetLeasePolicy explains the policy of a lease level by level
func (s *PolicyService) GetLeasePolicy(ctx context.Context, orgID, leaseID uuid.UUID) (*LeasePolicyResponse, error) {
	lease, err := s.leaseRepo.FindByID(ctx, orgID, leaseID)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, lease)
}

// SetLeaseOverride replaces the lease level policy fields
func (s *PolicyService) SetLeaseOverride(ctx context.Context, orgID, leaseID uuid.UUID, req SettingsRequest) (*LeasePolicyResponse, error) {
	lease, err := s.leaseRepo.FindByID(ctx, orgID, leaseID)
	if err != nil {
		return nil, err
	}
	if err := lease.SetPolicyOverride(req.ToSettings()); err != nil {
		return nil, err
	}
	if err := s.leaseRepo.SaveWithLock(ctx, lease); err != nil {
		return nil, err
	}
	s.logger.Info("Lease policy override set",
		zap.String("org_id", orgID.String()),
		zap.String("lease_id", leaseID.String()),
	)
	return s.describe(ctx, lease)
}

// ClearLeaseOverride removes every lease level policy field
func (s *PolicyService) ClearLeaseOverride(ctx context.Context, orgID, leaseID uuid.UUID) (*LeasePolicyResponse, error) {
	lease, err := s.leaseRepo.FindByID(ctx, orgID, leaseID)
	if err != nil {
		return nil, err
	}
	lease.ClearPolicyOverride()
	if err := s.leaseRepo.SaveWithLock(ctx, lease); err != nil {
		return nil, err
	}
	s.logger.Info("Lease policy override cleared",
		zap.String("org_id", orgID.String()),
		zap.String("lease_id", leaseID.String()),
	)
	return s.describe(ctx, lease)
}

func (s *PolicyService) describe(ctx context.Context, lease *leasing.Lease) (*LeasePolicyResponse, error) {
	levels, err := LoadLevels(ctx, s.policyRepo, lease)
	if err != nil {
		return nil, err
	}
	resp := &LeasePolicyResponse{
		LeaseID:    lease.ID,
		PropertyID: lease.PropertyID,
		Override:   ToSettingsResponse(lease.PolicyOverride),
		Effective:  ToEffectivePolicyResponse(policy.Resolve(lease.PolicyOverride, levels.Property, levels.Global)),
	}
	if levels.Property != nil {
		property := ToSettingsResponse(levels.Property.Settings)
		resp.Property = &property
	}
	if levels.Global != nil {
		global := ToSettingsResponse(levels.Global.Settings)
		resp.Global = &global
	}
	return resp, nil
}

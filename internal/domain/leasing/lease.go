// Package leasing contains the lease aggregate: the property it belongs to,
// its occupant tenants and the lease-level payment policy override.
package leasing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/policy"
	"github.com/leasepay/backend/internal/domain/shared"
)

// LeaseStatus represents the status of a lease
type LeaseStatus string

const (
	LeaseStatusActive LeaseStatus = "ACTIVE"
	LeaseStatusEnded  LeaseStatus = "ENDED"
)

// IsValid returns true if the status is known
func (s LeaseStatus) IsValid() bool {
	return s == LeaseStatusActive || s == LeaseStatusEnded
}

// String returns the string representation of the status
func (s LeaseStatus) String() string {
	return string(s)
}

// Lease is a rental agreement for one unit of a property
type Lease struct {
	shared.OrgAggregateRoot
	PropertyID     uuid.UUID
	Name           string
	Status         LeaseStatus
	StartDate      time.Time
	EndDate        *time.Time
	TenantIDs      []uuid.UUID
	PolicyOverride policy.Settings
}

// NewLease creates an active lease
func NewLease(orgID, propertyID uuid.UUID, name string, startDate time.Time, tenantIDs []uuid.UUID) (*Lease, error) {
	if propertyID == uuid.Nil {
		return nil, shared.NewInvalidInputError("property_id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewInvalidInputError("lease name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewInvalidInputError("lease name cannot exceed 200 characters")
	}
	seen := make(map[uuid.UUID]struct{}, len(tenantIDs))
	tenants := make([]uuid.UUID, 0, len(tenantIDs))
	for _, id := range tenantIDs {
		if id == uuid.Nil {
			return nil, shared.NewInvalidInputError("tenant id cannot be empty")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		tenants = append(tenants, id)
	}

	return &Lease{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(orgID),
		PropertyID:       propertyID,
		Name:             name,
		Status:           LeaseStatusActive,
		StartDate:        startDate,
		TenantIDs:        tenants,
	}, nil
}

// HasTenant reports whether the tenant occupies this lease
func (l *Lease) HasTenant(tenantID uuid.UUID) bool {
	for _, id := range l.TenantIDs {
		if id == tenantID {
			return true
		}
	}
	return false
}

// SetPolicyOverride replaces the lease-level policy fields
func (l *Lease) SetPolicyOverride(settings policy.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	l.PolicyOverride = settings
	l.IncrementVersion()
	l.Touch()
	return nil
}

// ClearPolicyOverride removes every lease-level policy field
func (l *Lease) ClearPolicyOverride() {
	l.PolicyOverride = policy.Settings{}
	l.IncrementVersion()
	l.Touch()
}

// End marks the lease as ended
func (l *Lease) End(at time.Time) error {
	if l.Status == LeaseStatusEnded {
		return shared.NewDomainError(shared.CodeInvalidState, "lease already ended")
	}
	l.Status = LeaseStatusEnded
	l.EndDate = &at
	l.IncrementVersion()
	l.Touch()
	return nil
}

// LeaseRepository persists leases
type LeaseRepository interface {
	FindByID(ctx context.Context, orgID, id uuid.UUID) (*Lease, error)
	// FindByIDForUpdate reads the lease and holds a row lock until the
	// surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, orgID, id uuid.UUID) (*Lease, error)
	Save(ctx context.Context, lease *Lease) error
	// SaveWithLock updates the lease only if the stored version is one behind
	SaveWithLock(ctx context.Context, lease *Lease) error
}

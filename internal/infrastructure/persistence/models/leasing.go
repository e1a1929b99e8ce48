package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/leasing"
	"github.com/leasepay/backend/internal/domain/policy"
	"github.com/shopspring/decimal"
)

// LeaseModel is the persistence model for the leases table.
// Nullable policy columns hold the lease level override.
type LeaseModel struct {
	OrgAggregateModel
	PropertyID    uuid.UUID           `gorm:"type:uuid;not null;index"`
	Name          string              `gorm:"type:varchar(200);not null"`
	Status        leasing.LeaseStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	StartDate     time.Time           `gorm:"not null"`
	EndDate       *time.Time
	AllowPartial  *bool              `gorm:"column:allow_partial"`
	AllowSplit    *bool              `gorm:"column:allow_split"`
	MinPartialUSD *decimal.Decimal   `gorm:"column:min_partial_usd;type:numeric(14,2)"`
	Tenants       []LeaseTenantModel `gorm:"foreignKey:LeaseID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (LeaseModel) TableName() string {
	return "leases"
}

// LeaseTenantModel links a tenant to a lease
type LeaseTenantModel struct {
	LeaseID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Position int       `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (LeaseTenantModel) TableName() string {
	return "lease_tenants"
}

// ToDomain converts the model to a domain Lease
func (m *LeaseModel) ToDomain() *leasing.Lease {
	tenants := make([]uuid.UUID, len(m.Tenants))
	for i, t := range sortedTenants(m.Tenants) {
		tenants[i] = t.TenantID
	}
	return &leasing.Lease{
		OrgAggregateRoot: m.ToDomainOrgAggregateRoot(),
		PropertyID:       m.PropertyID,
		Name:             m.Name,
		Status:           m.Status,
		StartDate:        m.StartDate,
		EndDate:          m.EndDate,
		TenantIDs:        tenants,
		PolicyOverride: policy.Settings{
			AllowPartial:  m.AllowPartial,
			AllowSplit:    m.AllowSplit,
			MinPartialUSD: m.MinPartialUSD,
		},
	}
}

// FromDomain populates the model from a domain Lease
func (m *LeaseModel) FromDomain(l *leasing.Lease) {
	m.FromDomainOrgAggregateRoot(l.OrgAggregateRoot)
	m.PropertyID = l.PropertyID
	m.Name = l.Name
	m.Status = l.Status
	m.StartDate = l.StartDate
	m.EndDate = l.EndDate
	m.AllowPartial = l.PolicyOverride.AllowPartial
	m.AllowSplit = l.PolicyOverride.AllowSplit
	m.MinPartialUSD = l.PolicyOverride.MinPartialUSD
	m.Tenants = make([]LeaseTenantModel, len(l.TenantIDs))
	for i, id := range l.TenantIDs {
		m.Tenants[i] = LeaseTenantModel{LeaseID: l.ID, TenantID: id, Position: i}
	}
}

// LeaseModelFromDomain creates a new persistence model from a domain Lease
func LeaseModelFromDomain(l *leasing.Lease) *LeaseModel {
	m := &LeaseModel{}
	m.FromDomain(l)
	return m
}

func sortedTenants(in []LeaseTenantModel) []LeaseTenantModel {
	out := make([]LeaseTenantModel, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

// Package policy holds the payment policy aggregate and the resolver that
// computes the policy in effect for a lease.
package policy

import (
	"context"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Scope is the level a stored policy row applies to
type Scope string

const (
	ScopeGlobal   Scope = "GLOBAL"
	ScopeProperty Scope = "PROPERTY"
)

// IsValid returns true if the scope is known
func (s Scope) IsValid() bool {
	return s == ScopeGlobal || s == ScopeProperty
}

// String returns the string representation of the scope
func (s Scope) String() string {
	return string(s)
}

// Settings holds the policy fields at one level. A nil field is not set at
// that level and falls through to the next one.
type Settings struct {
	AllowPartial  *bool
	AllowSplit    *bool
	MinPartialUSD *decimal.Decimal
}

// IsEmpty reports whether no field is set
func (s Settings) IsEmpty() bool {
	return s.AllowPartial == nil && s.AllowSplit == nil && s.MinPartialUSD == nil
}

// Validate checks the values that are set
func (s Settings) Validate() error {
	if s.MinPartialUSD != nil && s.MinPartialUSD.IsNegative() {
		return shared.NewInvalidInputError("min_partial_usd cannot be negative")
	}
	return nil
}

// PaymentPolicy is a stored policy row, either the organization-wide
// global row or a row for one property.
type PaymentPolicy struct {
	shared.OrgAggregateRoot
	Scope      Scope
	PropertyID *uuid.UUID
	Settings   Settings
}

// NewGlobalPolicy creates the organization-wide policy row
func NewGlobalPolicy(orgID uuid.UUID, settings Settings) (*PaymentPolicy, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &PaymentPolicy{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(orgID),
		Scope:            ScopeGlobal,
		Settings:         settings,
	}, nil
}

// NewPropertyPolicy creates a policy row for a single property
func NewPropertyPolicy(orgID, propertyID uuid.UUID, settings Settings) (*PaymentPolicy, error) {
	if propertyID == uuid.Nil {
		return nil, shared.NewInvalidInputError("property_id is required for a property policy")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &PaymentPolicy{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(orgID),
		Scope:            ScopeProperty,
		PropertyID:       &propertyID,
		Settings:         settings,
	}, nil
}

// Update replaces the settings of the row
func (p *PaymentPolicy) Update(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	p.Settings = settings
	p.IncrementVersion()
	p.Touch()
	return nil
}

// PolicyRepository persists policy rows
type PolicyRepository interface {
	// FindGlobal returns the global row, or shared.ErrNotFound if none is configured
	FindGlobal(ctx context.Context, orgID uuid.UUID) (*PaymentPolicy, error)
	// FindByProperty returns the row of a property, or shared.ErrNotFound
	FindByProperty(ctx context.Context, orgID, propertyID uuid.UUID) (*PaymentPolicy, error)
	// Save inserts or updates a row
	Save(ctx context.Context, p *PaymentPolicy) error
}

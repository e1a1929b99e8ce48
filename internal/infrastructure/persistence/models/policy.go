package models

import (
	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/policy"
	"github.com/shopspring/decimal"
)

// PaymentPolicyModel is the persistence model for the payment_policies table
type PaymentPolicyModel struct {
	OrgAggregateModel
	Scope         policy.Scope     `gorm:"type:varchar(20);not null"`
	PropertyID    *uuid.UUID       `gorm:"type:uuid;index"`
	AllowPartial  *bool            `gorm:"column:allow_partial"`
	AllowSplit    *bool            `gorm:"column:allow_split"`
	MinPartialUSD *decimal.Decimal `gorm:"column:min_partial_usd;type:numeric(14,2)"`
}

// TableName returns the table name for GORM
func (PaymentPolicyModel) TableName() string {
	return "payment_policies"
}

// ToDomain converts the model to a domain PaymentPolicy
func (m *PaymentPolicyModel) ToDomain() *policy.PaymentPolicy {
	return &policy.PaymentPolicy{
		OrgAggregateRoot: m.ToDomainOrgAggregateRoot(),
		Scope:            m.Scope,
		PropertyID:       m.PropertyID,
		Settings: policy.Settings{
			AllowPartial:  m.AllowPartial,
			AllowSplit:    m.AllowSplit,
			MinPartialUSD: m.MinPartialUSD,
		},
	}
}

// FromDomain populates the model from a domain PaymentPolicy
func (m *PaymentPolicyModel) FromDomain(p *policy.PaymentPolicy) {
	m.FromDomainOrgAggregateRoot(p.OrgAggregateRoot)
	m.Scope = p.Scope
	m.PropertyID = p.PropertyID
	m.AllowPartial = p.Settings.AllowPartial
	m.AllowSplit = p.Settings.AllowSplit
	m.MinPartialUSD = p.Settings.MinPartialUSD
}

// PaymentPolicyModelFromDomain creates a new persistence model from a domain PaymentPolicy
func PaymentPolicyModelFromDomain(p *policy.PaymentPolicy) *PaymentPolicyModel {
	m := &PaymentPolicyModel{}
	m.FromDomain(p)
	return m
}

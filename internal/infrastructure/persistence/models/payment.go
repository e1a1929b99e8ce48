package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the invoices table
type InvoiceModel struct {
	OrgAggregateModel
	LeaseID     uuid.UUID             `gorm:"type:uuid;not null;index:idx_invoices_lease_status,priority:1"`
	PropertyID  uuid.UUID             `gorm:"type:uuid;not null;index"`
	DueDate     time.Time             `gorm:"not null"`
	TotalAmount decimal.Decimal       `gorm:"type:numeric(14,2);not null"`
	BalanceDue  decimal.Decimal       `gorm:"type:numeric(14,2);not null"`
	Status      payment.InvoiceStatus `gorm:"type:varchar(20);not null;default:'OPEN';index:idx_invoices_lease_status,priority:2"`
	Memo        string                `gorm:"type:varchar(500)"`
	Lines       []InvoiceLineModel    `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// InvoiceLineModel is the persistence model for the invoice_lines table
type InvoiceLineModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	InvoiceID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position       int             `gorm:"not null"`
	Description    string          `gorm:"type:varchar(200);not null"`
	Amount         decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	BillToTenantID *uuid.UUID      `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (InvoiceLineModel) TableName() string {
	return "invoice_lines"
}

// ToDomain converts the model to a domain Invoice. Allocations are loaded
// separately by the repository.
func (m *InvoiceModel) ToDomain() *payment.Invoice {
	lines := make([]payment.InvoiceLine, len(m.Lines))
	for i, l := range m.Lines {
		lines[i] = payment.InvoiceLine{
			ID:             l.ID,
			InvoiceID:      l.InvoiceID,
			Position:       l.Position,
			Description:    l.Description,
			Amount:         l.Amount,
			BillToTenantID: l.BillToTenantID,
		}
	}
	return &payment.Invoice{
		OrgAggregateRoot: m.ToDomainOrgAggregateRoot(),
		LeaseID:          m.LeaseID,
		PropertyID:       m.PropertyID,
		DueDate:          m.DueDate,
		TotalAmount:      m.TotalAmount,
		BalanceDue:       m.BalanceDue,
		Status:           m.Status,
		Memo:             m.Memo,
		Lines:            lines,
		Allocations:      make([]payment.Allocation, 0),
	}
}

// FromDomain populates the model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *payment.Invoice) {
	m.FromDomainOrgAggregateRoot(inv.OrgAggregateRoot)
	m.LeaseID = inv.LeaseID
	m.PropertyID = inv.PropertyID
	m.DueDate = inv.DueDate
	m.TotalAmount = inv.TotalAmount
	m.BalanceDue = inv.BalanceDue
	m.Status = inv.Status
	m.Memo = inv.Memo
	m.Lines = make([]InvoiceLineModel, len(inv.Lines))
	for i, l := range inv.Lines {
		m.Lines[i] = InvoiceLineModel{
			ID:             l.ID,
			InvoiceID:      inv.ID,
			Position:       l.Position,
			Description:    l.Description,
			Amount:         l.Amount,
			BillToTenantID: l.BillToTenantID,
		}
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *payment.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentModel is the persistence model for the payments table.
// (org_id, idempotency_key) is unique when the key is set.
type PaymentModel struct {
	OrgAggregateModel
	LeaseID           uuid.UUID             `gorm:"type:uuid;not null;index"`
	PropertyID        uuid.UUID             `gorm:"type:uuid;not null"`
	TenantID          uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount            decimal.Decimal       `gorm:"type:numeric(14,2);not null"`
	Status            payment.PaymentStatus `gorm:"type:varchar(20);not null"`
	Gateway           payment.Gateway       `gorm:"type:varchar(20);not null"`
	Reference         string                `gorm:"type:varchar(200)"`
	IdempotencyKey    *string               `gorm:"type:varchar(255);index"`
	AllocatedAmount   decimal.Decimal       `gorm:"type:numeric(14,2);not null"`
	UnallocatedAmount decimal.Decimal       `gorm:"type:numeric(14,2);not null"`
	ReceivedAt        time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the model to a domain Payment
func (m *PaymentModel) ToDomain() *payment.Payment {
	return &payment.Payment{
		OrgAggregateRoot:  m.ToDomainOrgAggregateRoot(),
		LeaseID:           m.LeaseID,
		PropertyID:        m.PropertyID,
		TenantID:          m.TenantID,
		Amount:            m.Amount,
		Status:            m.Status,
		Gateway:           m.Gateway,
		Reference:         m.Reference,
		IdempotencyKey:    m.IdempotencyKey,
		AllocatedAmount:   m.AllocatedAmount,
		UnallocatedAmount: m.UnallocatedAmount,
		ReceivedAt:        m.ReceivedAt,
		Allocations:       make([]payment.Allocation, 0),
	}
}

// FromDomain populates the model from a domain Payment
func (m *PaymentModel) FromDomain(p *payment.Payment) {
	m.FromDomainOrgAggregateRoot(p.OrgAggregateRoot)
	m.LeaseID = p.LeaseID
	m.PropertyID = p.PropertyID
	m.TenantID = p.TenantID
	m.Amount = p.Amount
	m.Status = p.Status
	m.Gateway = p.Gateway
	m.Reference = p.Reference
	m.IdempotencyKey = p.IdempotencyKey
	m.AllocatedAmount = p.AllocatedAmount
	m.UnallocatedAmount = p.UnallocatedAmount
	m.ReceivedAt = p.ReceivedAt
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(p *payment.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// PaymentAllocationModel is a row of the insert-only allocation ledger
type PaymentAllocationModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrgID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentID uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	TenantID  *uuid.UUID      `gorm:"type:uuid"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CreatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentAllocationModel) TableName() string {
	return "payment_allocations"
}

// ToDomain converts the model to a domain Allocation
func (m *PaymentAllocationModel) ToDomain() payment.Allocation {
	return payment.Allocation{
		ID:        m.ID,
		OrgID:     m.OrgID,
		PaymentID: m.PaymentID,
		InvoiceID: m.InvoiceID,
		TenantID:  m.TenantID,
		Amount:    m.Amount,
		CreatedAt: m.CreatedAt,
	}
}

// PaymentAllocationModelFromDomain creates a ledger row from a domain Allocation
func PaymentAllocationModelFromDomain(a payment.Allocation) PaymentAllocationModel {
	return PaymentAllocationModel{
		ID:        a.ID,
		OrgID:     a.OrgID,
		PaymentID: a.PaymentID,
		InvoiceID: a.InvoiceID,
		TenantID:  a.TenantID,
		Amount:    a.Amount,
		CreatedAt: a.CreatedAt,
	}
}

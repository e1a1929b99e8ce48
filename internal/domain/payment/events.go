package payment

import (
	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type names
const (
	AggregateTypePayment = "Payment"
	AggregateTypeInvoice = "Invoice"
)

// Event types
const (
	EventTypePaymentRecorded      = "payment.recorded"
	EventTypePaymentAllocated     = "payment.allocated"
	EventTypeInvoiceStatusChanged = "invoice.status_changed"
)

// PaymentRecordedEvent is raised when a payment is captured
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	LeaseID  uuid.UUID       `json:"lease_id"`
	TenantID uuid.UUID       `json:"tenant_id"`
	Amount   decimal.Decimal `json:"amount"`
	Gateway  Gateway         `json:"gateway"`
}

// NewPaymentRecordedEvent creates a PaymentRecordedEvent
func NewPaymentRecordedEvent(p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypePayment, p.ID, p.OrgID),
		LeaseID:         p.LeaseID,
		TenantID:        p.TenantID,
		Amount:          p.Amount,
		Gateway:         p.Gateway,
	}
}

// PaymentAllocatedEvent is raised once the allocation pass of a payment is done
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	LeaseID              uuid.UUID       `json:"lease_id"`
	TenantID             uuid.UUID       `json:"tenant_id"`
	AllocatedAmount      decimal.Decimal `json:"allocated_amount"`
	UnallocatedRemainder decimal.Decimal `json:"unallocated_remainder"`
	AllocationCount      int             `json:"allocation_count"`
	InvoiceIDs           []uuid.UUID     `json:"invoice_ids"`
}

// NewPaymentAllocatedEvent creates a PaymentAllocatedEvent
func NewPaymentAllocatedEvent(p *Payment, result *AllocationResult) *PaymentAllocatedEvent {
	ids := make([]uuid.UUID, 0, len(result.UpdatedInvoices))
	for _, u := range result.UpdatedInvoices {
		ids = append(ids, u.InvoiceID)
	}
	return &PaymentAllocatedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypePaymentAllocated, AggregateTypePayment, p.ID, p.OrgID),
		LeaseID:              p.LeaseID,
		TenantID:             p.TenantID,
		AllocatedAmount:      result.AllocatedAmount,
		UnallocatedRemainder: result.UnallocatedRemainder,
		AllocationCount:      len(result.Allocations),
		InvoiceIDs:           ids,
	}
}

// InvoiceStatusChangedEvent is raised when an allocation moves an invoice to a new status
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	LeaseID    uuid.UUID       `json:"lease_id"`
	FromStatus InvoiceStatus   `json:"from_status"`
	ToStatus   InvoiceStatus   `json:"to_status"`
	BalanceDue decimal.Decimal `json:"balance_due"`
}

// NewInvoiceStatusChangedEvent creates an InvoiceStatusChangedEvent
func NewInvoiceStatusChangedEvent(inv *Invoice, from InvoiceStatus) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceStatusChanged, AggregateTypeInvoice, inv.ID, inv.OrgID),
		LeaseID:         inv.LeaseID,
		FromStatus:      from,
		ToStatus:        inv.Status,
		BalanceDue:      inv.BalanceDue,
	}
}

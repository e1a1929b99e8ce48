package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
)

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	shared.Filter
	Statuses []InvoiceStatus
}

// InvoiceRepository persists invoices with their lines. Reads return the
// invoice's allocation ledger in Allocations.
type InvoiceRepository interface {
	FindByID(ctx context.Context, orgID, id uuid.UUID) (*Invoice, error)
	// FindByIDForUpdate reads the invoice and holds a row lock until the
	// surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, orgID, id uuid.UUID) (*Invoice, error)
	// FindOutstandingByLeaseForUpdate returns the OPEN and PARTIALLY_PAID
	// invoices of a lease ordered by due date, row locked
	FindOutstandingByLeaseForUpdate(ctx context.Context, orgID, leaseID uuid.UUID) ([]*Invoice, error)
	// FindOutstandingByLease is the lock-free read used by previews and balances
	FindOutstandingByLease(ctx context.Context, orgID, leaseID uuid.UUID) ([]*Invoice, error)
	// FindByLease lists a lease's invoices
	FindByLease(ctx context.Context, orgID, leaseID uuid.UUID, filter InvoiceFilter) ([]*Invoice, int64, error)
	// Create inserts a new invoice and its lines
	Create(ctx context.Context, inv *Invoice) error
	// SaveWithLock updates balance and status if the stored version is one behind
	SaveWithLock(ctx context.Context, inv *Invoice) error
}

// PaymentRepository persists payments
type PaymentRepository interface {
	FindByID(ctx context.Context, orgID, id uuid.UUID) (*Payment, error)
	// FindByIdempotencyKey returns shared.ErrNotFound if no payment uses the key
	FindByIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string) (*Payment, error)
	// Create inserts a payment; a duplicate idempotency key yields shared.ErrAlreadyExists
	Create(ctx context.Context, p *Payment) error
	SaveWithLock(ctx context.Context, p *Payment) error
}

// AllocationRepository is the insert-only allocation ledger
type AllocationRepository interface {
	CreateBatch(ctx context.Context, allocs []Allocation) error
	FindByPayment(ctx context.Context, orgID, paymentID uuid.UUID) ([]Allocation, error)
	FindByInvoice(ctx context.Context, orgID, invoiceID uuid.UUID) ([]Allocation, error)
}

// Package payment contains rent payments, invoices, the allocation ledger
// and the allocator that spreads one payment over a lease's open invoices.
package payment

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a payment
type PaymentStatus string

const (
	// PaymentStatusRecorded is a captured payment that has not been allocated yet
	PaymentStatusRecorded PaymentStatus = "RECORDED"
	// PaymentStatusAllocated is a payment whose allocation pass has completed
	PaymentStatusAllocated PaymentStatus = "ALLOCATED"
)

// IsValid returns true if the status is a valid value
func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusRecorded || s == PaymentStatusAllocated
}

// String returns the string representation of the status
func (s PaymentStatus) String() string {
	return string(s)
}

// Gateway is the channel the money arrived through
type Gateway string

const (
	GatewayManual Gateway = "MANUAL"
	GatewayCash   Gateway = "CASH"
	GatewayCheck  Gateway = "CHECK"
	GatewayACH    Gateway = "ACH"
	GatewayCard   Gateway = "CARD"
	GatewayStripe Gateway = "STRIPE"
)

// IsValid returns true if the gateway is known
func (g Gateway) IsValid() bool {
	switch g {
	case GatewayManual, GatewayCash, GatewayCheck, GatewayACH, GatewayCard, GatewayStripe:
		return true
	}
	return false
}

// String returns the string representation of the gateway
func (g Gateway) String() string {
	return string(g)
}

// MaxIdempotencyKeyLength bounds client supplied keys
const MaxIdempotencyKeyLength = 255

// Payment is a rent payment received for a lease
type Payment struct {
	shared.OrgAggregateRoot
	LeaseID           uuid.UUID
	PropertyID        uuid.UUID
	TenantID          uuid.UUID // payer
	Amount            decimal.Decimal
	Status            PaymentStatus
	Gateway           Gateway
	Reference         string
	IdempotencyKey    *string
	AllocatedAmount   decimal.Decimal
	UnallocatedAmount decimal.Decimal
	ReceivedAt        time.Time
	Allocations       []Allocation
}

// NewPayment creates a recorded payment
func NewPayment(
	orgID, leaseID, propertyID, payerTenantID uuid.UUID,
	amount decimal.Decimal,
	gateway Gateway,
	idempotencyKey string,
	reference string,
	receivedAt time.Time,
) (*Payment, error) {
	if leaseID == uuid.Nil {
		return nil, shared.NewInvalidInputError("lease_id is required")
	}
	if payerTenantID == uuid.Nil {
		return nil, shared.NewInvalidInputError("payer tenant_id is required")
	}
	if err := validateAmount("amount", amount); err != nil {
		return nil, err
	}
	if gateway == "" {
		gateway = GatewayManual
	}
	if !gateway.IsValid() {
		return nil, shared.NewInvalidInputError("unknown payment gateway: " + gateway.String())
	}
	var key *string
	if k := strings.TrimSpace(idempotencyKey); k != "" {
		if len(k) > MaxIdempotencyKeyLength {
			return nil, shared.NewInvalidInputError("idempotency key is too long")
		}
		key = &k
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	p := &Payment{
		OrgAggregateRoot:  shared.NewOrgAggregateRoot(orgID),
		LeaseID:           leaseID,
		PropertyID:        propertyID,
		TenantID:          payerTenantID,
		Amount:            amount,
		Status:            PaymentStatusRecorded,
		Gateway:           gateway,
		Reference:         strings.TrimSpace(reference),
		IdempotencyKey:    key,
		AllocatedAmount:   decimal.Zero,
		UnallocatedAmount: amount,
		ReceivedAt:        receivedAt,
		Allocations:       make([]Allocation, 0),
	}
	p.AddDomainEvent(NewPaymentRecordedEvent(p))
	return p, nil
}

// CompleteAllocation stores the outcome of the allocation pass on the payment.
// A payment is allocated exactly once.
func (p *Payment) CompleteAllocation(result *AllocationResult) error {
	if p.Status == PaymentStatusAllocated {
		return shared.NewDomainError(shared.CodeInvalidState, "payment has already been allocated")
	}
	for _, a := range result.Allocations {
		if a.PaymentID != p.ID {
			return shared.NewDomainError(shared.CodeInvalidState, "allocation belongs to another payment")
		}
	}
	p.Allocations = append(p.Allocations, result.Allocations...)
	p.AllocatedAmount = result.AllocatedAmount
	p.UnallocatedAmount = result.UnallocatedRemainder
	p.Status = PaymentStatusAllocated
	p.IncrementVersion()
	p.Touch()
	p.AddDomainEvent(NewPaymentAllocatedEvent(p, result))
	return nil
}

// IsOverpaid returns true if part of the payment could not be applied
func (p *Payment) IsOverpaid() bool {
	return p.UnallocatedAmount.IsPositive()
}

// Allocation records how much of one payment was applied to one invoice,
// optionally attributed to the tenant of a billed line. Allocations are
// never updated or deleted.
type Allocation struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	PaymentID uuid.UUID
	InvoiceID uuid.UUID
	TenantID  *uuid.UUID
	Amount    decimal.Decimal
	CreatedAt time.Time
}

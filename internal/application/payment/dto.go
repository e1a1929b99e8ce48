package payment

import (
	"time"

	"github.com/google/uuid"
	policyapp "github.com/leasepay/backend/internal/application/policy"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RecordPaymentInput is a captured payment to record and allocate
type RecordPaymentInput struct {
	OrgID          uuid.UUID
	LeaseID        uuid.UUID
	InvoiceID      *uuid.UUID // allocate to this invoice only
	PayerTenantID  uuid.UUID
	Amount         decimal.Decimal
	Gateway        string
	Reference      string
	IdempotencyKey string
	ReceivedAt     *time.Time
}

func (in RecordPaymentInput) validate() error {
	switch {
	case in.OrgID == uuid.Nil:
		return shared.NewInvalidInputError("org_id is required")
	case in.LeaseID == uuid.Nil:
		return shared.NewInvalidInputError("lease_id is required")
	case in.PayerTenantID == uuid.Nil:
		return shared.NewInvalidInputError("payer tenant_id is required")
	case !in.Amount.IsPositive():
		return shared.NewInvalidInputError("amount must be positive")
	case !in.Amount.Equal(in.Amount.Round(2)):
		return shared.NewInvalidInputError("amount cannot have more than two decimal places")
	case len(in.IdempotencyKey) > payment.MaxIdempotencyKeyLength:
		return shared.NewInvalidInputError("idempotency key is too long")
	}
	if in.InvoiceID != nil && *in.InvoiceID == uuid.Nil {
		return shared.NewInvalidInputError("invoice_id cannot be empty")
	}
	return nil
}

// AllocationResponse is one ledger entry
type AllocationResponse struct {
	ID        uuid.UUID       `json:"id"`
	InvoiceID uuid.UUID       `json:"invoice_id"`
	TenantID  *uuid.UUID      `json:"tenant_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// InvoiceUpdateResponse is the new balance and status of an invoice
type InvoiceUpdateResponse struct {
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	BalanceDue     decimal.Decimal `json:"balance_due"`
	Status         string          `json:"status"`
	PreviousStatus string          `json:"previous_status"`
}

// PaymentResponse is a payment with its allocations
type PaymentResponse struct {
	ID                uuid.UUID            `json:"id"`
	LeaseID           uuid.UUID            `json:"lease_id"`
	PropertyID        uuid.UUID            `json:"property_id"`
	TenantID          uuid.UUID            `json:"tenant_id"`
	Amount            decimal.Decimal      `json:"amount"`
	Status            string               `json:"status"`
	Gateway           string               `json:"gateway"`
	Reference         string               `json:"reference,omitempty"`
	IdempotencyKey    *string              `json:"idempotency_key,omitempty"`
	AllocatedAmount   decimal.Decimal      `json:"allocated_amount"`
	UnallocatedAmount decimal.Decimal      `json:"unallocated_amount"`
	ReceivedAt        time.Time            `json:"received_at"`
	CreatedAt         time.Time            `json:"created_at"`
	Allocations       []AllocationResponse `json:"allocations"`
}

// RecordPaymentResult is the outcome of RecordPayment. Replayed is set when
// the idempotency key matched an earlier payment, which is returned as stored.
type RecordPaymentResult struct {
	Payment         PaymentResponse                    `json:"payment"`
	UpdatedInvoices []InvoiceUpdateResponse            `json:"updated_invoices"`
	Policy          *policyapp.EffectivePolicyResponse `json:"policy,omitempty"`
	Replayed        bool                               `json:"replayed"`
}

// PreviewResponse is what RecordPayment would do, computed without writing
type PreviewResponse struct {
	LeaseID              uuid.UUID                         `json:"lease_id"`
	TenantID             uuid.UUID                         `json:"tenant_id"`
	Amount               decimal.Decimal                   `json:"amount"`
	PayerDue             decimal.Decimal                   `json:"payer_due"`
	Allocations          []AllocationResponse              `json:"allocations"`
	UpdatedInvoices      []InvoiceUpdateResponse           `json:"updated_invoices"`
	AllocatedAmount      decimal.Decimal                   `json:"allocated_amount"`
	UnallocatedRemainder decimal.Decimal                   `json:"unallocated_remainder"`
	RoundingMode         string                            `json:"rounding_mode"`
	Policy               policyapp.EffectivePolicyResponse `json:"policy"`
}

// InvoiceDueResponse is what a payer owes on one invoice
type InvoiceDueResponse struct {
	InvoiceID  uuid.UUID       `json:"invoice_id"`
	DueDate    time.Time       `json:"due_date"`
	Status     string          `json:"status"`
	BalanceDue decimal.Decimal `json:"balance_due"`
	PayerDue   decimal.Decimal `json:"payer_due"`
	HasLines   bool            `json:"has_billed_lines"`
}

// PayerBalanceResponse is the balance a payer currently owes on a lease
type PayerBalanceResponse struct {
	LeaseID   uuid.UUID            `json:"lease_id"`
	TenantID  uuid.UUID            `json:"tenant_id"`
	PayerDue  decimal.Decimal      `json:"payer_due"`
	Formatted string               `json:"formatted"`
	Invoices  []InvoiceDueResponse `json:"invoices"`
}

// ToAllocationResponses converts ledger entries
func ToAllocationResponses(allocs []payment.Allocation) []AllocationResponse {
	out := make([]AllocationResponse, len(allocs))
	for i, a := range allocs {
		out[i] = AllocationResponse{
			ID:        a.ID,
			InvoiceID: a.InvoiceID,
			TenantID:  a.TenantID,
			Amount:    a.Amount,
			CreatedAt: a.CreatedAt,
		}
	}
	return out
}

// ToInvoiceUpdateResponses converts invoice updates
func ToInvoiceUpdateResponses(updates []payment.InvoiceUpdate) []InvoiceUpdateResponse {
	out := make([]InvoiceUpdateResponse, len(updates))
	for i, u := range updates {
		out[i] = InvoiceUpdateResponse{
			InvoiceID:      u.InvoiceID,
			BalanceDue:     u.BalanceDue,
			Status:         u.Status.String(),
			PreviousStatus: u.PreviousStatus.String(),
		}
	}
	return out
}

// ToPaymentResponse converts a domain payment
func ToPaymentResponse(p *payment.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                p.ID,
		LeaseID:           p.LeaseID,
		PropertyID:        p.PropertyID,
		TenantID:          p.TenantID,
		Amount:            p.Amount,
		Status:            p.Status.String(),
		Gateway:           p.Gateway.String(),
		Reference:         p.Reference,
		IdempotencyKey:    p.IdempotencyKey,
		AllocatedAmount:   p.AllocatedAmount,
		UnallocatedAmount: p.UnallocatedAmount,
		ReceivedAt:        p.ReceivedAt,
		CreatedAt:         p.CreatedAt,
		Allocations:       ToAllocationResponses(p.Allocations),
	}
}

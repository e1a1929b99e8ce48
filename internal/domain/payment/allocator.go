package payment

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/leasepay/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RoundingMode selects when allocation amounts are rounded to cents
type RoundingMode string

const (
	// RoundingPerAllocation rounds every allocation as it is created.
	// Many tiny allocations can drift by a cent from the payment total.
	RoundingPerAllocation RoundingMode = "per_allocation"
	// RoundingFinal runs the pass at full precision and rounds the final
	// amounts on their running sum, so the allocations add up to the
	// rounded total.
	RoundingFinal RoundingMode = "final"
)

// IsValid returns true if the mode is known
func (m RoundingMode) IsValid() bool {
	return m == RoundingPerAllocation || m == RoundingFinal
}

// String returns the string representation of the mode
func (m RoundingMode) String() string {
	return string(m)
}

// ParseRoundingMode parses a configured rounding mode; empty means per allocation
func ParseRoundingMode(s string) (RoundingMode, error) {
	if s == "" {
		return RoundingPerAllocation, nil
	}
	m := RoundingMode(s)
	if !m.IsValid() {
		return "", shared.NewInvalidInputError("unknown rounding mode: " + s)
	}
	return m, nil
}

// AllocationRequest is one payment to spread over invoices
type AllocationRequest struct {
	OrgID         uuid.UUID
	PaymentID     uuid.UUID
	PayerTenantID uuid.UUID
	Amount        decimal.Decimal
	AllowSplit    bool
}

func (r AllocationRequest) validate() error {
	if !r.Amount.IsPositive() {
		return shared.NewInvalidInputError("payment amount must be positive")
	}
	if r.PayerTenantID == uuid.Nil {
		return shared.NewInvalidInputError("payer tenant_id is required")
	}
	if r.PaymentID == uuid.Nil {
		return shared.NewInvalidInputError("payment_id is required")
	}
	return nil
}

// InvoiceUpdate is the new balance and status of an invoice touched by a pass
type InvoiceUpdate struct {
	InvoiceID      uuid.UUID
	BalanceDue     decimal.Decimal
	Status         InvoiceStatus
	PreviousStatus InvoiceStatus
}

// AllocationResult is the outcome of one allocation pass
type AllocationResult struct {
	Allocations          []Allocation
	UpdatedInvoices      []InvoiceUpdate
	AllocatedAmount      decimal.Decimal
	UnallocatedRemainder decimal.Decimal
	RoundingMode         RoundingMode
}

// IsOverpayment returns true if part of the payment was left unapplied
func (r *AllocationResult) IsOverpayment() bool {
	return r.UnallocatedRemainder.IsPositive()
}

// Allocator spreads a payment over invoices. It is greedy and deterministic:
// invoices by ascending due date; within an invoice billed lines first,
// the payer's own lines ahead of everyone else's, then the general balance.
type Allocator struct {
	rounding RoundingMode
	clock    func() time.Time
}

// AllocatorOption configures an Allocator
type AllocatorOption func(*Allocator)

// WithRoundingMode sets the rounding mode
func WithRoundingMode(mode RoundingMode) AllocatorOption {
	return func(a *Allocator) {
		if mode.IsValid() {
			a.rounding = mode
		}
	}
}

// WithClock overrides the time source used for allocation timestamps
func WithClock(clock func() time.Time) AllocatorOption {
	return func(a *Allocator) {
		a.clock = clock
	}
}

// NewAllocator creates an allocator rounding per allocation unless configured otherwise
func NewAllocator(opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		rounding: RoundingPerAllocation,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RoundingMode returns the configured rounding mode
func (a *Allocator) RoundingMode() RoundingMode {
	return a.rounding
}

// draft is an allocation before it is materialized
type draft struct {
	invoice  *Invoice
	tenantID *uuid.UUID
	amount   decimal.Decimal
}

// Allocate runs one allocation pass. The given invoices are the candidates
// (the lease's outstanding invoices, or the single requested one); they are
// updated in place with the new allocations, balance and status.
//
// The allocator is not idempotent: running it twice for the same payment
// allocates twice. Callers guard it with the payment's idempotency key.
func (a *Allocator) Allocate(req AllocationRequest, invoices []*Invoice) (*AllocationResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	targets := SelectTargets(invoices, req.AllowSplit)

	remaining := req.Amount
	drafts := make([]draft, 0, len(targets))
	for _, inv := range targets {
		if !remaining.IsPositive() {
			break
		}
		var invDrafts []draft
		invDrafts, remaining = a.allocateInvoice(inv, req.PayerTenantID, remaining)
		drafts = append(drafts, invDrafts...)
	}

	if a.rounding == RoundingFinal {
		roundOnRunningSum(drafts)
	}

	result := &AllocationResult{
		Allocations:     make([]Allocation, 0, len(drafts)),
		UpdatedInvoices: make([]InvoiceUpdate, 0),
		AllocatedAmount: decimal.Zero,
		RoundingMode:    a.rounding,
	}

	now := a.clock()
	touched := make([]*Invoice, 0)
	seen := make(map[uuid.UUID]bool)
	for _, d := range drafts {
		if !d.amount.IsPositive() {
			continue
		}
		alloc := Allocation{
			ID:        uuid.New(),
			OrgID:     req.OrgID,
			PaymentID: req.PaymentID,
			InvoiceID: d.invoice.ID,
			TenantID:  d.tenantID,
			Amount:    d.amount,
			CreatedAt: now,
		}
		d.invoice.ApplyAllocations(alloc)
		result.Allocations = append(result.Allocations, alloc)
		result.AllocatedAmount = result.AllocatedAmount.Add(d.amount)
		if !seen[d.invoice.ID] {
			seen[d.invoice.ID] = true
			touched = append(touched, d.invoice)
		}
	}

	for _, inv := range touched {
		previous := inv.Status
		inv.RecomputeBalance()
		result.UpdatedInvoices = append(result.UpdatedInvoices, InvoiceUpdate{
			InvoiceID:      inv.ID,
			BalanceDue:     inv.BalanceDue,
			Status:         inv.Status,
			PreviousStatus: previous,
		})
	}

	if a.rounding == RoundingFinal {
		result.UnallocatedRemainder = valueobject.Round2(remaining)
	} else {
		result.UnallocatedRemainder = remaining
	}

	return result, nil
}

// allocateInvoice runs the billed-line phase and the general-balance phase
// for one invoice and returns the drafts plus what is left of the payment.
func (a *Allocator) allocateInvoice(inv *Invoice, payer uuid.UUID, remaining decimal.Decimal) ([]draft, decimal.Decimal) {
	drafts := make([]draft, 0)
	invAllocated := inv.AllocatedTotal()

	// paid is what each tenant has been allocated on this invoice, this pass
	// included; credited is the part of it already matched to earlier lines.
	paid := make(map[uuid.UUID]decimal.Decimal)
	credited := make(map[uuid.UUID]decimal.Decimal)

	for _, line := range payerFirst(inv.BilledLines(), payer) {
		if !remaining.IsPositive() {
			break
		}
		tenant := *line.BillToTenantID
		if _, ok := paid[tenant]; !ok {
			paid[tenant] = inv.AllocatedToTenant(tenant)
		}

		available := decimal.Max(decimal.Zero, paid[tenant].Sub(credited[tenant]))
		credit := decimal.Min(available, line.Amount)
		credited[tenant] = credited[tenant].Add(credit)

		lineDue := line.Amount.Sub(credit)
		invDue := decimal.Max(decimal.Zero, inv.TotalAmount.Sub(invAllocated))
		toApply := decimal.Min(remaining, decimal.Min(lineDue, invDue))
		if !toApply.IsPositive() {
			continue
		}

		amount := a.roundStep(toApply)
		drafts = append(drafts, draft{invoice: inv, tenantID: &tenant, amount: amount})
		remaining = remaining.Sub(toApply)
		paid[tenant] = paid[tenant].Add(amount)
		credited[tenant] = credited[tenant].Add(amount)
		invAllocated = invAllocated.Add(amount)
	}

	if remaining.IsPositive() {
		invDue := decimal.Max(decimal.Zero, inv.TotalAmount.Sub(invAllocated))
		toApply := decimal.Min(remaining, invDue)
		if toApply.IsPositive() {
			amount := a.roundStep(toApply)
			drafts = append(drafts, draft{invoice: inv, tenantID: nil, amount: amount})
			remaining = remaining.Sub(toApply)
		}
	}

	return drafts, remaining
}

func (a *Allocator) roundStep(amount decimal.Decimal) decimal.Decimal {
	if a.rounding == RoundingPerAllocation {
		return valueobject.Round2(amount)
	}
	return amount
}

// roundOnRunningSum rounds each draft to the difference of the rounded
// running sums, so the rounded drafts add up to the rounded total.
func roundOnRunningSum(drafts []draft) {
	raw := decimal.Zero
	prev := decimal.Zero
	for i := range drafts {
		raw = raw.Add(drafts[i].amount)
		rounded := valueobject.Round2(raw)
		drafts[i].amount = rounded.Sub(prev)
		prev = rounded
	}
}

// payerFirst orders billed lines so the payer's lines come first; each
// group keeps line order.
func payerFirst(lines []InvoiceLine, payer uuid.UUID) []InvoiceLine {
	ordered := make([]InvoiceLine, len(lines))
	copy(ordered, lines)
	sort.SliceStable(ordered, func(i, j int) bool {
		iPayer := *ordered[i].BillToTenantID == payer
		jPayer := *ordered[j].BillToTenantID == payer
		return iPayer && !jPayer
	})
	return ordered
}

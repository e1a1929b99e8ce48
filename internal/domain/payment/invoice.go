package payment

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/leasepay/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the payment status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusOpen          InvoiceStatus = "OPEN"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
)

// IsValid returns true if the status is a valid value
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusOpen, InvoiceStatusPartiallyPaid, InvoiceStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of the status
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsOutstanding returns true if the invoice can still receive payments
func (s InvoiceStatus) IsOutstanding() bool {
	return s == InvoiceStatusOpen || s == InvoiceStatusPartiallyPaid
}

// OutstandingInvoiceStatuses lists the statuses an allocation pass targets
func OutstandingInvoiceStatuses() []InvoiceStatus {
	return []InvoiceStatus{InvoiceStatusOpen, InvoiceStatusPartiallyPaid}
}

// DeriveInvoiceStatus maps a balance to a status:
// PAID when nothing is due, PARTIALLY_PAID when something was paid, OPEN otherwise.
func DeriveInvoiceStatus(total, balance decimal.Decimal) InvoiceStatus {
	switch {
	case balance.LessThanOrEqual(decimal.Zero):
		return InvoiceStatusPaid
	case balance.LessThan(total):
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusOpen
	}
}

// InvoiceLine is a share of an invoice. A line with a BillToTenantID is
// billed to that tenant; a line without one is part of the general balance.
type InvoiceLine struct {
	ID             uuid.UUID
	InvoiceID      uuid.UUID
	Position       int
	Description    string
	Amount         decimal.Decimal
	BillToTenantID *uuid.UUID
}

// IsBilled returns true if the line is attributed to a tenant
func (l InvoiceLine) IsBilled() bool {
	return l.BillToTenantID != nil
}

// NewLineInput describes a line when creating an invoice
type NewLineInput struct {
	Description    string
	Amount         decimal.Decimal
	BillToTenantID *uuid.UUID
}

// Invoice is a billable charge for a lease period.
// Allocations holds every allocation recorded against the invoice so far;
// BalanceDue and Status are derived from it.
type Invoice struct {
	shared.OrgAggregateRoot
	LeaseID     uuid.UUID
	PropertyID  uuid.UUID
	DueDate     time.Time
	TotalAmount decimal.Decimal
	BalanceDue  decimal.Decimal
	Status      InvoiceStatus
	Memo        string
	Lines       []InvoiceLine
	Allocations []Allocation
}

// NewInvoice creates an open invoice. Billed lines may not add up to more
// than the total; whatever they leave is the general balance.
func NewInvoice(
	orgID, leaseID, propertyID uuid.UUID,
	dueDate time.Time,
	total decimal.Decimal,
	memo string,
	lines []NewLineInput,
) (*Invoice, error) {
	if leaseID == uuid.Nil {
		return nil, shared.NewInvalidInputError("lease_id is required")
	}
	if propertyID == uuid.Nil {
		return nil, shared.NewInvalidInputError("property_id is required")
	}
	if dueDate.IsZero() {
		return nil, shared.NewInvalidInputError("due_date is required")
	}
	if err := validateAmount("total_amount", total); err != nil {
		return nil, err
	}
	memo = strings.TrimSpace(memo)
	if len(memo) > 500 {
		return nil, shared.NewInvalidInputError("memo cannot exceed 500 characters")
	}

	inv := &Invoice{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(orgID),
		LeaseID:          leaseID,
		PropertyID:       propertyID,
		DueDate:          dueDate,
		TotalAmount:      total,
		BalanceDue:       total,
		Status:           InvoiceStatusOpen,
		Memo:             memo,
		Lines:            make([]InvoiceLine, 0, len(lines)),
		Allocations:      make([]Allocation, 0),
	}

	billed := decimal.Zero
	for i, in := range lines {
		if err := validateAmount("line amount", in.Amount); err != nil {
			return nil, err
		}
		desc := strings.TrimSpace(in.Description)
		if desc == "" {
			return nil, shared.NewInvalidInputError("line description cannot be empty")
		}
		if in.BillToTenantID != nil {
			if *in.BillToTenantID == uuid.Nil {
				return nil, shared.NewInvalidInputError("bill_to_tenant_id cannot be empty")
			}
			billed = billed.Add(in.Amount)
		}
		inv.Lines = append(inv.Lines, InvoiceLine{
			ID:             uuid.New(),
			InvoiceID:      inv.ID,
			Position:       i,
			Description:    desc,
			Amount:         in.Amount,
			BillToTenantID: in.BillToTenantID,
		})
	}
	if billed.GreaterThan(total) {
		return nil, shared.NewInvalidInputError("billed lines exceed the invoice total")
	}

	return inv, nil
}

func validateAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.NewInvalidInputError(field + " must be positive")
	}
	if !amount.Equal(valueobject.Round2(amount)) {
		return shared.NewInvalidInputError(field + " cannot have more than two decimal places")
	}
	return nil
}

// AllocatedTotal returns the sum of all allocations on the invoice
func (inv *Invoice) AllocatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range inv.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// AllocatedToTenant returns the sum of allocations attributed to a tenant
func (inv *Invoice) AllocatedToTenant(tenantID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for _, a := range inv.Allocations {
		if a.TenantID != nil && *a.TenantID == tenantID {
			total = total.Add(a.Amount)
		}
	}
	return total
}

// Outstanding returns max(0, total - allocated)
func (inv *Invoice) Outstanding() decimal.Decimal {
	return decimal.Max(decimal.Zero, inv.TotalAmount.Sub(inv.AllocatedTotal()))
}

// BilledLines returns the lines billed to a tenant in line order
func (inv *Invoice) BilledLines() []InvoiceLine {
	lines := make([]InvoiceLine, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		if l.IsBilled() {
			lines = append(lines, l)
		}
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Position < lines[j].Position
	})
	return lines
}

// HasLinesFor reports whether any line is billed to the tenant
func (inv *Invoice) HasLinesFor(tenantID uuid.UUID) bool {
	for _, l := range inv.Lines {
		if l.BillToTenantID != nil && *l.BillToTenantID == tenantID {
			return true
		}
	}
	return false
}

// TenantDue returns what is still due on the lines billed to the tenant.
// Allocations to the tenant are credited to the tenant's lines in line order.
func (inv *Invoice) TenantDue(tenantID uuid.UUID) decimal.Decimal {
	credit := inv.AllocatedToTenant(tenantID)
	due := decimal.Zero
	for _, l := range inv.BilledLines() {
		if *l.BillToTenantID != tenantID {
			continue
		}
		applied := decimal.Min(credit, l.Amount)
		credit = credit.Sub(applied)
		due = due.Add(l.Amount.Sub(applied))
	}
	return due
}

// PayerDue is the amount the payer currently owes on this invoice: their
// own billed lines when they have any, otherwise the outstanding balance.
func (inv *Invoice) PayerDue(payerTenantID uuid.UUID) decimal.Decimal {
	if inv.HasLinesFor(payerTenantID) {
		return decimal.Min(inv.TenantDue(payerTenantID), inv.Outstanding())
	}
	return inv.Outstanding()
}

// ApplyAllocations appends allocations to the invoice ledger
func (inv *Invoice) ApplyAllocations(allocs ...Allocation) {
	inv.Allocations = append(inv.Allocations, allocs...)
}

// RecomputeBalance derives BalanceDue and Status from the allocation ledger.
// It returns true if either changed.
func (inv *Invoice) RecomputeBalance() bool {
	newBalance := valueobject.Round2(inv.TotalAmount.Sub(inv.AllocatedTotal()))
	newStatus := DeriveInvoiceStatus(inv.TotalAmount, newBalance)

	if newBalance.Equal(inv.BalanceDue) && newStatus == inv.Status {
		return false
	}

	oldStatus := inv.Status
	inv.BalanceDue = newBalance
	inv.Status = newStatus
	inv.IncrementVersion()
	inv.Touch()

	if oldStatus != newStatus {
		inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, oldStatus))
	}
	return true
}

// OrderForAllocation sorts invoices by ascending due date, then creation
// time, then id, without modifying the input slice.
func OrderForAllocation(invoices []*Invoice) []*Invoice {
	sorted := make([]*Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv != nil {
			sorted = append(sorted, inv)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return sorted
}

// SelectTargets orders the invoices for allocation. When splitting is not
// allowed only the first invoice with an outstanding balance is kept.
func SelectTargets(invoices []*Invoice, allowSplit bool) []*Invoice {
	ordered := OrderForAllocation(invoices)
	if allowSplit || len(ordered) <= 1 {
		return ordered
	}
	for _, inv := range ordered {
		if inv.Outstanding().IsPositive() {
			return []*Invoice{inv}
		}
	}
	return ordered[:1]
}

// PayerDueAcross sums PayerDue over the invoices
func PayerDueAcross(invoices []*Invoice, payerTenantID uuid.UUID) decimal.Decimal {
	due := decimal.Zero
	for _, inv := range invoices {
		due = due.Add(inv.PayerDue(payerTenantID))
	}
	return due
}

package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/leasing"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateInvoiceLineInput is one line of a new invoice. A line without a
// tenant is part of the general balance.
type CreateInvoiceLineInput struct {
	Description    string          `json:"description" binding:"required,max=500"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	BillToTenantID *uuid.UUID      `json:"bill_to_tenant_id"`
}

// CreateInvoiceInput creates an invoice for a lease
type CreateInvoiceInput struct {
	LeaseID     uuid.UUID                `json:"lease_id" binding:"required"`
	DueDate     time.Time                `json:"due_date" binding:"required"`
	TotalAmount decimal.Decimal          `json:"total_amount" binding:"required"`
	Memo        string                   `json:"memo" binding:"max=500"`
	Lines       []CreateInvoiceLineInput `json:"lines" binding:"dive"`
}

// InvoiceLineResponse is one invoice line
type InvoiceLineResponse struct {
	ID             uuid.UUID       `json:"id"`
	Position       int             `json:"position"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	BillToTenantID *uuid.UUID      `json:"bill_to_tenant_id"`
}

// InvoiceResponse is an invoice with its lines and allocations
type InvoiceResponse struct {
	ID          uuid.UUID             `json:"id"`
	LeaseID     uuid.UUID             `json:"lease_id"`
	PropertyID  uuid.UUID             `json:"property_id"`
	DueDate     time.Time             `json:"due_date"`
	TotalAmount decimal.Decimal       `json:"total_amount"`
	BalanceDue  decimal.Decimal       `json:"balance_due"`
	Status      string                `json:"status"`
	Memo        string                `json:"memo,omitempty"`
	Lines       []InvoiceLineResponse `json:"lines"`
	Allocations []AllocationResponse  `json:"allocations"`
	Version     int                   `json:"version"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// ToInvoiceResponse converts a domain invoice
func ToInvoiceResponse(inv *payment.Invoice) InvoiceResponse {
	lines := make([]InvoiceLineResponse, len(inv.Lines))
	for i, l := range inv.Lines {
		lines[i] = InvoiceLineResponse{
			ID:             l.ID,
			Position:       l.Position,
			Description:    l.Description,
			Amount:         l.Amount,
			BillToTenantID: l.BillToTenantID,
		}
	}
	return InvoiceResponse{
		ID:          inv.ID,
		LeaseID:     inv.LeaseID,
		PropertyID:  inv.PropertyID,
		DueDate:     inv.DueDate,
		TotalAmount: inv.TotalAmount,
		BalanceDue:  inv.BalanceDue,
		Status:      inv.Status.String(),
		Memo:        inv.Memo,
		Lines:       lines,
		Allocations: ToAllocationResponses(inv.Allocations),
		Version:     inv.Version,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
}

// InvoiceService issues and reads lease invoices
type InvoiceService struct {
	leaseRepo   leasing.LeaseRepository
	invoiceRepo payment.InvoiceRepository
	logger      *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(leaseRepo leasing.LeaseRepository, invoiceRepo payment.InvoiceRepository, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{
		leaseRepo:   leaseRepo,
		invoiceRepo: invoiceRepo,
		logger:      logger,
	}
}

// Create issues an open invoice on a lease. Billed lines must name tenants
// of the lease.
func (s *InvoiceService) Create(ctx context.Context, orgID uuid.UUID, in CreateInvoiceInput) (*InvoiceResponse, error) {
	lease, err := s.leaseRepo.FindByID(ctx, orgID, in.LeaseID)
	if err != nil {
		return nil, err
	}

	lines := make([]payment.NewLineInput, len(in.Lines))
	for i, l := range in.Lines {
		if l.BillToTenantID != nil && !lease.HasTenant(*l.BillToTenantID) {
			return nil, shared.NewInvalidInputError("bill_to_tenant_id is not a tenant of this lease")
		}
		lines[i] = payment.NewLineInput{
			Description:    l.Description,
			Amount:         l.Amount,
			BillToTenantID: l.BillToTenantID,
		}
	}

	inv, err := payment.NewInvoice(orgID, lease.ID, lease.PropertyID, in.DueDate, in.TotalAmount, in.Memo, lines)
	if err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("Invoice created",
		zap.String("org_id", orgID.String()),
		zap.String("lease_id", lease.ID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("total", inv.TotalAmount.String()),
		zap.Int("lines", len(inv.Lines)),
	)
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// Get returns an invoice with its allocation ledger
func (s *InvoiceService) Get(ctx context.Context, orgID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// ListByLease pages a lease's invoices, optionally narrowed to statuses
func (s *InvoiceService) ListByLease(ctx context.Context, orgID, leaseID uuid.UUID, filter payment.InvoiceFilter) (*shared.Paginated[InvoiceResponse], error) {
	for _, st := range filter.Statuses {
		if !st.IsValid() {
			return nil, shared.NewInvalidInputError("unknown invoice status: " + st.String())
		}
	}
	if _, err := s.leaseRepo.FindByID(ctx, orgID, leaseID); err != nil {
		return nil, err
	}

	invoices, total, err := s.invoiceRepo.FindByLease(ctx, orgID, leaseID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		items[i] = ToInvoiceResponse(inv)
	}
	result := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &result, nil
}

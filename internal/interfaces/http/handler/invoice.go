package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	paymentapp "github.com/leasepay/backend/internal/application/payment"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/domain/shared"
)

// InvoiceService is what InvoiceHandler needs from the invoice application service
type InvoiceService interface {
	Create(ctx context.Context, orgID uuid.UUID, in paymentapp.CreateInvoiceInput) (*paymentapp.InvoiceResponse, error)
	Get(ctx context.Context, orgID, invoiceID uuid.UUID) (*paymentapp.InvoiceResponse, error)
	ListByLease(ctx context.Context, orgID, leaseID uuid.UUID, filter payment.InvoiceFilter) (*shared.Paginated[paymentapp.InvoiceResponse], error)
}

// InvoiceHandler serves invoice endpoints
type InvoiceHandler struct {
	BaseHandler
	invoices InvoiceService
	leases   LeaseReader
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(invoices InvoiceService, leases LeaseReader) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, leases: leases}
}

// Create handles POST /invoices
// @ID           createInvoice
// @Summary      Create an invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body paymentapp.CreateInvoiceInput true "Request body"
// @Success      201 {object} dto.Response{data=paymentapp.InvoiceResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      403 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req paymentapp.CreateInvoiceInput
	if !h.bindJSON(c, &req) {
		return
	}

	inv, err := h.invoices.Create(c.Request.Context(), p.OrgID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, inv)
}

// Get handles GET /invoices/:id
// @ID           getInvoice
// @Summary      Get an invoice by ID
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Response{data=paymentapp.InvoiceResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	invoiceID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	inv, err := h.invoices.Get(c.Request.Context(), p.OrgID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if _, ok := h.loadLease(c, h.leases, p, inv.LeaseID); !ok {
		return
	}
	h.Success(c, inv)
}

// ListByLease handles GET /leases/:id/invoices?status=OPEN,PARTIALLY_PAID&sort_by=due_date
// @ID           listLeaseInvoices
// @Summary      List the invoices of a lease
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Lease ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Param        status query string false "Comma separated statuses" example(OPEN,PARTIALLY_PAID)
// @Param        sort_by query string false "Sort field" Enums(due_date, created_at, total_amount, balance_due, status)
// @Param        sort_order query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} dto.Response{data=[]paymentapp.InvoiceResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /leases/{id}/invoices [get]
func (h *InvoiceHandler) ListByLease(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	leaseID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	page, ok := h.pageFilter(c)
	if !ok {
		return
	}
	page.OrderBy = c.Query("sort_by")
	page.OrderDir = c.Query("sort_order")
	filter := payment.InvoiceFilter{Filter: page}
	for _, raw := range c.QueryArray("status") {
		for _, s := range strings.Split(raw, ",") {
			status := payment.InvoiceStatus(strings.ToUpper(strings.TrimSpace(s)))
			if status == "" {
				continue
			}
			if !status.IsValid() {
				h.BadRequest(c, "Unknown invoice status: "+s)
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if _, ok := h.loadLease(c, h.leases, p, leaseID); !ok {
		return
	}

	result, err := h.invoices.ListByLease(c.Request.Context(), p.OrgID, leaseID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, result)
}

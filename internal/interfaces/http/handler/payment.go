package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	paymentapp "github.com/leasepay/backend/internal/application/payment"
	"github.com/leasepay/backend/internal/domain/identity"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/infrastructure/auth"
	"github.com/leasepay/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// IdempotencyKeyHeader carries the client's idempotency key
const IdempotencyKeyHeader = "Idempotency-Key"

// PaymentService is what PaymentHandler needs from the payment application service
type PaymentService interface {
	RecordPayment(ctx context.Context, in paymentapp.RecordPaymentInput) (*paymentapp.RecordPaymentResult, error)
	PreviewAllocation(ctx context.Context, in paymentapp.RecordPaymentInput) (*paymentapp.PreviewResponse, error)
	GetPayment(ctx context.Context, orgID, paymentID uuid.UUID) (*paymentapp.PaymentResponse, error)
	GetPayerBalance(ctx context.Context, orgID, leaseID, tenantID uuid.UUID) (*paymentapp.PayerBalanceResponse, error)
}

// RecordPaymentRequest is the body of POST /payments and /payments/preview.
// TenantID names the payer and may be omitted by TENANT-role callers.
type RecordPaymentRequest struct {
	LeaseID        uuid.UUID       `json:"lease_id" binding:"required"`
	InvoiceID      *uuid.UUID      `json:"invoice_id"`
	TenantID       *uuid.UUID      `json:"tenant_id"`
	Amount         decimal.Decimal `json:"amount" binding:"required,gt=0"`
	Gateway        string          `json:"gateway" binding:"omitempty,oneof=MANUAL CASH CHECK ACH CARD STRIPE"`
	Reference      string          `json:"reference" binding:"max=255"`
	IdempotencyKey string          `json:"idempotency_key" binding:"max=255"`
	ReceivedAt     *time.Time      `json:"received_at"`
}

// PaymentHandler serves payment recording and reads
type PaymentHandler struct {
	BaseHandler
	payments PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// RecordPayment handles POST /payments. A new payment answers 201, a
// replayed idempotency key 200 with the stored payment.
// @ID           recordPayment
// @Summary      Record and allocate a payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Idempotency key, must match idempotency_key when both are sent"
// @Param        request body RecordPaymentRequest true "Request body"
// @Success      200 {object} dto.Response{data=paymentapp.RecordPaymentResult}
// @Success      201 {object} dto.Response{data=paymentapp.RecordPaymentResult}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      403 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /payments [post]
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	in, ok := h.paymentInput(c)
	if !ok {
		return
	}

	result, err := h.payments.RecordPayment(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Replayed {
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

// PreviewAllocation handles POST /payments/preview
// @ID           previewPaymentAllocation
// @Summary      Preview a payment allocation
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body RecordPaymentRequest true "Request body"
// @Success      200 {object} dto.Response{data=paymentapp.PreviewResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      403 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /payments/preview [post]
func (h *PaymentHandler) PreviewAllocation(c *gin.Context) {
	in, ok := h.paymentInput(c)
	if !ok {
		return
	}

	preview, err := h.payments.PreviewAllocation(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, preview)
}

// GetPayment handles GET /payments/:id. TENANT-role callers only see
// their own payments.
// @ID           getPayment
// @Summary      Get a payment by ID
// @Tags         payments
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} dto.Response{data=paymentapp.PaymentResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	paymentID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.payments.GetPayment(c.Request.Context(), p.OrgID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !canActFor(p, resp.TenantID, identity.CapPaymentsRecordAny) {
		h.Error(c, dto.ErrCodeNotFound, "Resource not found")
		return
	}
	h.Success(c, resp)
}

// GetPayerBalance handles GET /leases/:id/balance?tenant_id=
// @ID           getPayerBalance
// @Summary      Get what a tenant owes on a lease
// @Tags         payments
// @Produce      json
// @Param        id path string true "Lease ID" format(uuid)
// @Param        tenant_id query string false "Tenant ID, defaults to the caller" format(uuid)
// @Success      200 {object} dto.Response{data=paymentapp.PayerBalanceResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      403 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /leases/{id}/balance [get]
func (h *PaymentHandler) GetPayerBalance(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	leaseID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	var requested *uuid.UUID
	if raw := c.Query("tenant_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid tenant_id format")
			return
		}
		requested = &id
	}
	tenantID, ok := h.resolvePayer(c, p, requested)
	if !ok {
		return
	}

	balance, err := h.payments.GetPayerBalance(c.Request.Context(), p.OrgID, leaseID, tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

func (h *PaymentHandler) paymentInput(c *gin.Context) (paymentapp.RecordPaymentInput, bool) {
	p, ok := h.principal(c)
	if !ok {
		return paymentapp.RecordPaymentInput{}, false
	}
	var req RecordPaymentRequest
	if !h.bindJSON(c, &req) {
		return paymentapp.RecordPaymentInput{}, false
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if header := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)); header != "" {
		if key != "" && key != header {
			h.BadRequest(c, "Idempotency-Key header and idempotency_key differ")
			return paymentapp.RecordPaymentInput{}, false
		}
		key = header
	}

	payer, ok := h.resolvePayer(c, p, req.TenantID)
	if !ok {
		return paymentapp.RecordPaymentInput{}, false
	}

	gateway := req.Gateway
	if gateway == "" {
		gateway = payment.GatewayManual.String()
	}

	return paymentapp.RecordPaymentInput{
		OrgID:          p.OrgID,
		LeaseID:        req.LeaseID,
		InvoiceID:      req.InvoiceID,
		PayerTenantID:  payer,
		Amount:         req.Amount,
		Gateway:        gateway,
		Reference:      req.Reference,
		IdempotencyKey: key,
		ReceivedAt:     req.ReceivedAt,
	}, true
}

// resolvePayer picks the tenant a request acts for. Callers bound to a
// tenant act as that tenant unless they may record for anyone; everyone
// else has to name the tenant.
func (h *PaymentHandler) resolvePayer(c *gin.Context, p auth.Principal, requested *uuid.UUID) (uuid.UUID, bool) {
	if requested == nil {
		if p.TenantID == nil {
			h.BadRequest(c, "tenant_id is required")
			return uuid.Nil, false
		}
		return *p.TenantID, true
	}
	if !canActFor(p, *requested, identity.CapPaymentsRecordAny) {
		h.Forbidden(c, "Cannot act on behalf of another tenant")
		return uuid.Nil, false
	}
	return *requested, true
}

// canActFor reports whether p may act for tenantID: either p is that tenant
// or p holds the override capability
func canActFor(p auth.Principal, tenantID uuid.UUID, override identity.Capability) bool {
	if p.Capabilities().Has(override) {
		return true
	}
	return p.TenantID != nil && *p.TenantID == tenantID
}

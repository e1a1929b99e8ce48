package handler

import (
	"context"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	leasingapp "github.com/leasepay/backend/internal/application/leasing"
	"github.com/leasepay/backend/internal/domain/identity"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/leasepay/backend/internal/infrastructure/auth"
	"github.com/leasepay/backend/internal/interfaces/http/dto"
)

// LeaseReader loads a lease for access checks
type LeaseReader interface {
	Get(ctx context.Context, orgID, leaseID uuid.UUID) (*leasingapp.LeaseResponse, error)
}

// LeaseService is what LeaseHandler needs from the lease application service
type LeaseService interface {
	LeaseReader
	Create(ctx context.Context, orgID uuid.UUID, in leasingapp.CreateLeaseInput) (*leasingapp.LeaseResponse, error)
	End(ctx context.Context, orgID, leaseID uuid.UUID, at time.Time) (*leasingapp.LeaseResponse, error)
	ListActivity(ctx context.Context, orgID, leaseID uuid.UUID, filter shared.Filter) (*shared.Paginated[leasingapp.ActivityResponse], error)
}

// EndLeaseRequest is the body of POST /leases/:id/end. EndDate defaults to now.
type EndLeaseRequest struct {
	EndDate *time.Time `json:"end_date"`
}

// LeaseHandler serves lease endpoints
type LeaseHandler struct {
	BaseHandler
	leases LeaseService
	now    func() time.Time
}

// NewLeaseHandler creates a new lease handler
func NewLeaseHandler(leases LeaseService) *LeaseHandler {
	return &LeaseHandler{leases: leases, now: time.Now}
}

// Create handles POST /leases
// @ID           createLease
// @Summary      Create a lease
// @Tags         leases
// @Accept       json
// @Produce      json
// @Param        request body leasingapp.CreateLeaseInput true "Request body"
// @Success      201 {object} dto.Response{data=leasingapp.LeaseResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      403 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /leases [post]
func (h *LeaseHandler) Create(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req leasingapp.CreateLeaseInput
	if !h.bindJSON(c, &req) {
		return
	}

	lease, err := h.leases.Create(c.Request.Context(), p.OrgID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, lease)
}

// Get handles GET /leases/:id
// @ID           getLease
// @Summary      Get a lease by ID
// @Tags         leases
// @Produce      json
// @Param        id path string true "Lease ID" format(uuid)
// @Success      200 {object} dto.Response{data=leasingapp.LeaseResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /leases/{id} [get]
func (h *LeaseHandler) Get(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	leaseID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	lease, ok := h.loadLease(c, h.leases, p, leaseID)
	if !ok {
		return
	}
	h.Success(c, lease)
}

// End handles POST /leases/:id/end
// @ID           endLease
// @Summary      End a lease
// @Description  Ends the lease at end_date, or now. Outstanding invoices still accept payments.
// @Tags         leases
// @Accept       json
// @Produce      json
// @Param        id path string true "Lease ID" format(uuid)
// @Param        request body EndLeaseRequest true "Request body"
// @Success      200 {object} dto.Response{data=leasingapp.LeaseResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      403 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /leases/{id}/end [post]
func (h *LeaseHandler) End(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	leaseID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req EndLeaseRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	at := h.now()
	if req.EndDate != nil {
		at = *req.EndDate
	}

	lease, err := h.leases.End(c.Request.Context(), p.OrgID, leaseID, at)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lease)
}

// ListActivity handles GET /leases/:id/activity
// @ID           listLeaseActivity
// @Summary      List lease activity
// @Tags         leases
// @Produce      json
// @Param        id path string true "Lease ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]leasingapp.ActivityResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /leases/{id}/activity [get]
func (h *LeaseHandler) ListActivity(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	leaseID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	filter, ok := h.pageFilter(c)
	if !ok {
		return
	}
	if _, ok := h.loadLease(c, h.leases, p, leaseID); !ok {
		return
	}

	page, err := h.leases.ListActivity(c.Request.Context(), p.OrgID, leaseID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

// loadLease fetches a lease and hides it from tenants who are not on it
func (h *BaseHandler) loadLease(c *gin.Context, leases LeaseReader, p auth.Principal, leaseID uuid.UUID) (*leasingapp.LeaseResponse, bool) {
	lease, err := leases.Get(c.Request.Context(), p.OrgID, leaseID)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	if !onLease(p, lease) {
		h.Error(c, dto.ErrCodeNotFound, "Resource not found")
		return nil, false
	}
	return lease, true
}

// onLease reports whether p may see lease. Staff see every lease of their
// org; tenant-bound callers only the leases they are party to.
func onLease(p auth.Principal, lease *leasingapp.LeaseResponse) bool {
	if p.Capabilities().Has(identity.CapPaymentsRecordAny) {
		return true
	}
	return p.TenantID != nil && slices.Contains(lease.TenantIDs, *p.TenantID)
}

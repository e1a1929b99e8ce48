package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	policyapp "github.com/leasepay/backend/internal/application/policy"
)

// PolicyService is what PolicyHandler needs from the policy application service
type PolicyService interface {
	GetGlobal(ctx context.Context, orgID uuid.UUID) (*policyapp.PolicyResponse, error)
	UpsertGlobal(ctx context.Context, orgID uuid.UUID, req policyapp.SettingsRequest) (*policyapp.PolicyResponse, error)
	GetProperty(ctx context.Context, orgID, propertyID uuid.UUID) (*policyapp.PolicyResponse, error)
	UpsertProperty(ctx context.Context, orgID, propertyID uuid.UUID, req policyapp.SettingsRequest) (*policyapp.PolicyResponse, error)
	GetLeasePolicy(ctx context.Context, orgID, leaseID uuid.UUID) (*policyapp.LeasePolicyResponse, error)
	SetLeaseOverride(ctx context.Context, orgID, leaseID uuid.UUID, req policyapp.SettingsRequest) (*policyapp.LeasePolicyResponse, error)
	ClearLeaseOverride(ctx context.Context, orgID, leaseID uuid.UUID) (*policyapp.LeasePolicyResponse, error)
}

// PolicyHandler serves the three policy levels
type PolicyHandler struct {
	BaseHandler
	policies PolicyService
	leases   LeaseReader
}

// NewPolicyHandler creates a new policy handler
func NewPolicyHandler(policies PolicyService, leases LeaseReader) *PolicyHandler {
	return &PolicyHandler{policies: policies, leases: leases}
}

// GetGlobal handles GET /policies/global
// @ID           getGlobalPolicy
// @Summary      Get the global payment policy
// @Tags         policies
// @Produce      json
// @Success      200 {object} dto.Response{data=policyapp.PolicyResponse}
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /policies/global [get]
func (h *PolicyHandler) GetGlobal(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	resp, err := h.policies.GetGlobal(c.Request.Context(), p.OrgID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpsertGlobal handles PUT /policies/global
// @ID           upsertGlobalPolicy
// @Summary      Create or replace the global payment policy
// @Tags         policies
// @Accept       json
// @Produce      json
// @Param        request body policyapp.SettingsRequest true "Request body"
// @Success      200 {object} dto.Response{data=policyapp.PolicyResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      403 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /policies/global [put]
func (h *PolicyHandler) UpsertGlobal(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req policyapp.SettingsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.policies.UpsertGlobal(c.Request.Context(), p.OrgID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetProperty handles GET /properties/:id/policy
// @ID           getPropertyPolicy
// @Summary      Get a property payment policy
// @Tags         policies
// @Produce      json
// @Param        id path string true "Property ID" format(uuid)
// @Success      200 {object} dto.Response{data=policyapp.PolicyResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /properties/{id}/policy [get]
func (h *PolicyHandler) GetProperty(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	propertyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.policies.GetProperty(c.Request.Context(), p.OrgID, propertyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpsertProperty handles PUT /properties/:id/policy
// @ID           upsertPropertyPolicy
// @Summary      Create or replace a property payment policy
// @Tags         policies
// @Accept       json
// @Produce      json
// @Param        id path string true "Property ID" format(uuid)
// @Param        request body policyapp.SettingsRequest true "Request body"
// @Success      200 {object} dto.Response{data=policyapp.PolicyResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      403 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /properties/{id}/policy [put]
func (h *PolicyHandler) UpsertProperty(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	propertyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req policyapp.SettingsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.policies.UpsertProperty(c.Request.Context(), p.OrgID, propertyID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetLeasePolicy handles GET /leases/:id/policy. The response lists every
// level and where each effective field came from.
// @ID           getLeasePolicy
// @Summary      Get the effective policy of a lease
// @Tags         policies
// @Produce      json
// @Param        id path string true "Lease ID" format(uuid)
// @Success      200 {object} dto.Response{data=policyapp.LeasePolicyResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /leases/{id}/policy [get]
func (h *PolicyHandler) GetLeasePolicy(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	leaseID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	if _, ok := h.loadLease(c, h.leases, p, leaseID); !ok {
		return
	}
	resp, err := h.policies.GetLeasePolicy(c.Request.Context(), p.OrgID, leaseID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// SetLeaseOverride handles PUT /leases/:id/policy
// @ID           setLeasePolicyOverride
// @Summary      Set the lease policy override
// @Tags         policies
// @Accept       json
// @Produce      json
// @Param        id path string true "Lease ID" format(uuid)
// @Param        request body policyapp.SettingsRequest true "Request body"
// @Success      200 {object} dto.Response{data=policyapp.LeasePolicyResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      403 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /leases/{id}/policy [put]
func (h *PolicyHandler) SetLeaseOverride(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	leaseID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req policyapp.SettingsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.policies.SetLeaseOverride(c.Request.Context(), p.OrgID, leaseID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ClearLeaseOverride handles DELETE /leases/:id/policy
// @ID           clearLeasePolicyOverride
// @Summary      Clear the lease policy override
// @Tags         policies
// @Produce      json
// @Param        id path string true "Lease ID" format(uuid)
// @Success      200 {object} dto.Response{data=policyapp.LeasePolicyResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      403 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /leases/{id}/policy [delete]
func (h *PolicyHandler) ClearLeaseOverride(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	leaseID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.policies.ClearLeaseOverride(c.Request.Context(), p.OrgID, leaseID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

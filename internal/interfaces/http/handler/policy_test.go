package handler

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	leasingapp "github.com/leasepay/backend/internal/application/leasing"
	policyapp "github.com/leasepay/backend/internal/application/policy"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestPolicyHandler_UpsertGlobal(t *testing.T) {
	orgID := uuid.New()
	policies := new(mockPolicyService)
	h := NewPolicyHandler(policies, new(mockLeaseService))

	policies.On("UpsertGlobal", mock.Anything, orgID, mock.MatchedBy(func(req policyapp.SettingsRequest) bool {
		return req.AllowPartial != nil && *req.AllowPartial &&
			req.AllowSplit == nil &&
			req.MinPartialUSD != nil && req.MinPartialUSD.Equal(decimal.NewFromInt(50))
	})).Return(&policyapp.PolicyResponse{ID: uuid.New(), Scope: "GLOBAL"}, nil)

	w := serve(t, testRequest{
		method:    http.MethodPut,
		route:     "/policies/global",
		path:      "/policies/global",
		body:      map[string]any{"allow_partial": true, "min_partial_usd": "50"},
		principal: staffPrincipal(orgID),
	}, h.UpsertGlobal)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	policies.AssertExpectations(t)
}

func TestPolicyHandler_UpsertProperty_Invalid(t *testing.T) {
	orgID, propertyID := uuid.New(), uuid.New()
	policies := new(mockPolicyService)
	h := NewPolicyHandler(policies, new(mockLeaseService))
	policies.On("UpsertProperty", mock.Anything, orgID, propertyID, mock.Anything).
		Return(nil, shared.NewInvalidInputError("min_partial_usd must not be negative"))

	w := serve(t, testRequest{
		method:    http.MethodPut,
		route:     "/properties/:id/policy",
		path:      "/properties/" + propertyID.String() + "/policy",
		body:      map[string]any{"min_partial_usd": "-1"},
		principal: staffPrincipal(orgID),
	}, h.UpsertProperty)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeResponse(t, w).Error.Message, "negative")
}

func TestPolicyHandler_GetGlobal_NotConfigured(t *testing.T) {
	orgID := uuid.New()
	policies := new(mockPolicyService)
	h := NewPolicyHandler(policies, new(mockLeaseService))
	policies.On("GetGlobal", mock.Anything, orgID).Return(nil, shared.ErrNotFound)

	w := serve(t, testRequest{
		method:    http.MethodGet,
		route:     "/policies/global",
		path:      "/policies/global",
		principal: staffPrincipal(orgID),
	}, h.GetGlobal)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPolicyHandler_GetLeasePolicy(t *testing.T) {
	orgID, tenantID, leaseID := uuid.New(), uuid.New(), uuid.New()
	policies := new(mockPolicyService)
	leases := new(mockLeaseService)
	h := NewPolicyHandler(policies, leases)

	leases.On("Get", mock.Anything, orgID, leaseID).Return(&leasingapp.LeaseResponse{ID: leaseID, TenantIDs: []uuid.UUID{tenantID}}, nil)
	policies.On("GetLeasePolicy", mock.Anything, orgID, leaseID).Return(&policyapp.LeasePolicyResponse{
		LeaseID: leaseID,
		Effective: policyapp.EffectivePolicyResponse{
			AllowPartial:  true,
			MinPartialUSD: decimal.NewFromInt(25),
			Sources:       policyapp.SourcesResponse{AllowPartial: "lease", AllowSplit: "default", MinPartialUSD: "property"},
		},
	}, nil)

	w := serve(t, testRequest{
		method:    http.MethodGet,
		route:     "/leases/:id/policy",
		path:      "/leases/" + leaseID.String() + "/policy",
		principal: tenantPrincipal(orgID, tenantID),
	}, h.GetLeasePolicy)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp policyapp.LeasePolicyResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "lease", resp.Effective.Sources.AllowPartial)
	assert.True(t, resp.Effective.MinPartialUSD.Equal(decimal.NewFromInt(25)))
}

func TestPolicyHandler_LeaseOverride(t *testing.T) {
	orgID, leaseID := uuid.New(), uuid.New()
	policies := new(mockPolicyService)
	h := NewPolicyHandler(policies, new(mockLeaseService))

	policies.On("SetLeaseOverride", mock.Anything, orgID, leaseID, mock.MatchedBy(func(req policyapp.SettingsRequest) bool {
		return req.AllowSplit != nil && !*req.AllowSplit
	})).Return(&policyapp.LeasePolicyResponse{LeaseID: leaseID}, nil)
	policies.On("ClearLeaseOverride", mock.Anything, orgID, leaseID).Return(&policyapp.LeasePolicyResponse{LeaseID: leaseID}, nil)

	w := serve(t, testRequest{
		method:    http.MethodPut,
		route:     "/leases/:id/policy",
		path:      "/leases/" + leaseID.String() + "/policy",
		body:      map[string]any{"allow_split": false},
		principal: staffPrincipal(orgID),
	}, h.SetLeaseOverride)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(t, testRequest{
		method:    http.MethodDelete,
		route:     "/leases/:id/policy",
		path:      "/leases/" + leaseID.String() + "/policy",
		principal: staffPrincipal(orgID),
	}, h.ClearLeaseOverride)
	assert.Equal(t, http.StatusOK, w.Code)

	policies.AssertExpectations(t)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/identity"
	"github.com/leasepay/backend/internal/infrastructure/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequireCapability(t *testing.T) {
	svc := newTestJWTService()
	tenantID := uuid.New()
	tenantToken := issueToken(t, svc, auth.IssueInput{OrgID: uuid.New(), UserID: uuid.New(), Role: identity.RoleTenant, TenantID: &tenantID})
	managerToken := issueToken(t, svc, auth.IssueInput{OrgID: uuid.New(), UserID: uuid.New(), Role: identity.RoleManager})
	ownerToken := issueToken(t, svc, auth.IssueInput{OrgID: uuid.New(), UserID: uuid.New(), Role: identity.RoleOwner})

	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	router.POST("/invoices", RequireCapability(identity.CapInvoicesCreate), func(c *gin.Context) { c.Status(http.StatusCreated) })
	router.PUT("/policies/global", RequireCapability(identity.CapPolicyManage), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/either", RequireAnyCapability(identity.CapPolicyManage, identity.CapPaymentsRead), func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(method, path, token string) int {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusForbidden, call(http.MethodPost, "/invoices", tenantToken))
	assert.Equal(t, http.StatusCreated, call(http.MethodPost, "/invoices", managerToken))
	assert.Equal(t, http.StatusForbidden, call(http.MethodPut, "/policies/global", managerToken))
	assert.Equal(t, http.StatusOK, call(http.MethodPut, "/policies/global", ownerToken))
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/either", tenantToken))
}

func TestRequireCapability_WithoutAuthentication(t *testing.T) {
	router := gin.New()
	router.GET("/x", RequireCapability(identity.CapLeasesRead), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAnyCapabilityWithConfig_LogsDenial(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	principal := auth.Principal{OrgID: uuid.New(), UserID: uuid.New(), Role: identity.RoleManager}

	router := gin.New()
	router.Use(RequestID(), func(c *gin.Context) {
		c.Set(JWTPrincipalKey, principal)
		c.Next()
	})
	router.GET("/outbox/stats",
		RequireAnyCapabilityWithConfig(PermissionConfig{Logger: zap.New(core)}, identity.CapSystemOutbox),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/outbox/stats", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ERR_FORBIDDEN", errorCode(t, w))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Capability denied", entry.Message)
	assert.Equal(t, "MANAGER", entry.ContextMap()["role"])
	assert.Equal(t, principal.UserID.String(), entry.ContextMap()["user_id"])
}

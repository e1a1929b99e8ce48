package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/identity"
	"github.com/leasepay/backend/internal/infrastructure/auth"
	"github.com/leasepay/backend/internal/infrastructure/config"
	"github.com/leasepay/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars!",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "leasepay-test",
	})
}

func issueToken(t *testing.T, svc *auth.JWTService, in auth.IssueInput) string {
	t.Helper()
	token, _, err := svc.Issue(in)
	require.NoError(t, err)
	return token
}

type brokenRevocations struct{}

func (brokenRevocations) Revoke(context.Context, string, time.Duration) error { return nil }
func (brokenRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func newAuthRouter(cfg JWTMiddlewareConfig, handler gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.Use(JWTAuthMiddlewareWithConfig(cfg))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/test", handler)
	return router
}

func serve(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	orgID, userID, tenantID := uuid.New(), uuid.New(), uuid.New()
	token := issueToken(t, svc, auth.IssueInput{OrgID: orgID, UserID: userID, Role: identity.RoleTenant, TenantID: &tenantID})

	var principal auth.Principal
	var ok bool
	var ctxOrg string
	router := newAuthRouter(DefaultJWTConfig(svc), func(c *gin.Context) {
		principal, ok = GetPrincipal(c)
		assert.NotNil(t, GetJWTClaims(c))
		ctxOrg = logger.GetOrgID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := serve(router, "/test", token)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, ok)
	assert.Equal(t, orgID, principal.OrgID)
	assert.Equal(t, userID, principal.UserID)
	assert.Equal(t, identity.RoleTenant, principal.Role)
	require.NotNil(t, principal.TenantID)
	assert.Equal(t, tenantID, *principal.TenantID)
	assert.Equal(t, orgID.String(), ctxOrg)
}

func TestJWTAuthMiddleware_Rejects(t *testing.T) {
	svc := newTestJWTService()
	other := auth.NewJWTService(config.JWTConfig{
		Secret:                "another-secret-key-at-least-32-chars",
		AccessTokenExpiration: time.Minute,
		Issuer:                "leasepay-test",
	})
	expired := auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars!",
		AccessTokenExpiration: -time.Minute,
		Issuer:                "leasepay-test",
	})
	in := auth.IssueInput{OrgID: uuid.New(), UserID: uuid.New(), Role: identity.RoleManager}

	router := newAuthRouter(DefaultJWTConfig(svc), func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		name  string
		token string
		raw   string
		code  string
	}{
		{name: "missing header", code: "ERR_UNAUTHORIZED"},
		{name: "not bearer", raw: "Basic abc", code: "ERR_UNAUTHORIZED"},
		{name: "garbage", token: "not-a-jwt", code: "ERR_TOKEN_INVALID"},
		{name: "wrong signature", token: issueToken(t, other, in), code: "ERR_TOKEN_INVALID"},
		{name: "expired", token: issueToken(t, expired, in), code: "ERR_TOKEN_EXPIRED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			switch {
			case tc.raw != "":
				req.Header.Set(AuthHeaderKey, tc.raw)
			case tc.token != "":
				req.Header.Set(AuthHeaderKey, BearerPrefix+tc.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tc.code, errorCode(t, w))
			assert.Contains(t, w.Body.String(), `"request_id"`)
		})
	}
}

func TestJWTAuthMiddleware_SkipPaths(t *testing.T) {
	router := newAuthRouter(DefaultJWTConfig(newTestJWTService()), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(router, "/health", "").Code)
}

func TestJWTAuthMiddleware_Revocation(t *testing.T) {
	svc := newTestJWTService()
	token := issueToken(t, svc, auth.IssueInput{OrgID: uuid.New(), UserID: uuid.New(), Role: identity.RoleOwner})
	claims, err := svc.Validate(token)
	require.NoError(t, err)

	t.Run("revoked token is rejected", func(t *testing.T) {
		revocations := auth.NewMemoryRevocationList()
		require.NoError(t, revocations.Revoke(context.Background(), claims.ID, time.Minute))

		cfg := DefaultJWTConfig(svc)
		cfg.Revocations = revocations
		router := newAuthRouter(cfg, func(c *gin.Context) { c.Status(http.StatusOK) })

		w := serve(router, "/test", token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "ERR_TOKEN_REVOKED", errorCode(t, w))
	})

	t.Run("unavailable store fails open", func(t *testing.T) {
		cfg := DefaultJWTConfig(svc)
		cfg.Revocations = brokenRevocations{}
		router := newAuthRouter(cfg, func(c *gin.Context) { c.Status(http.StatusOK) })

		assert.Equal(t, http.StatusOK, serve(router, "/test", token).Code)
	})
}

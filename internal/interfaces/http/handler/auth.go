package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/infrastructure/auth"
	"github.com/leasepay/backend/internal/infrastructure/logger"
	"github.com/leasepay/backend/internal/interfaces/http/dto"
	"github.com/leasepay/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// AuthHandler serves endpoints about the caller's own token
type AuthHandler struct {
	BaseHandler
	revocations auth.RevocationList
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(revocations auth.RevocationList) *AuthHandler {
	return &AuthHandler{revocations: revocations}
}

// CapabilitiesResponse describes the authenticated caller
type CapabilitiesResponse struct {
	OrgID        uuid.UUID  `json:"org_id"`
	UserID       uuid.UUID  `json:"user_id"`
	Role         string     `json:"role"`
	TenantID     *uuid.UUID `json:"tenant_id,omitempty"`
	Capabilities []string   `json:"capabilities"`
}

// LogoutResponse represents logout response
type LogoutResponse struct {
	Message   string    `json:"message"`
	RevokedAt time.Time `json:"revoked_at"`
}

// Capabilities handles GET /auth/capabilities
// @ID           getAuthCapabilities
// @Summary      List the caller's capabilities
// @Tags         auth
// @Produce      json
// @Success      200 {object} dto.Response{data=CapabilitiesResponse}
// @Failure      401 {object} dto.Response
// @Security     BearerAuth
// @Router       /auth/capabilities [get]
func (h *AuthHandler) Capabilities(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}

	h.Success(c, CapabilitiesResponse{
		OrgID:        p.OrgID,
		UserID:       p.UserID,
		Role:         string(p.Role),
		TenantID:     p.TenantID,
		Capabilities: p.Capabilities().Strings(),
	})
}

// Logout handles POST /auth/logout. The token id is revoked until the
// token would have expired anyway.
// @ID           logout
// @Summary      Revoke the current token
// @Tags         auth
// @Produce      json
// @Success      200 {object} dto.Response{data=LogoutResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Error(c, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}
	if claims.ID == "" {
		h.BadRequest(c, "Token has no id and cannot be revoked")
		return
	}

	if ttl := claims.RemainingTTL(); ttl > 0 {
		if err := h.revocations.Revoke(c.Request.Context(), claims.ID, ttl); err != nil {
			h.HandleError(c, err)
			return
		}
	}

	logger.GetGinLogger(c).Info("Token revoked",
		zap.String("user_id", claims.UserID),
		zap.String("jti", claims.ID),
	)
	h.Success(c, LogoutResponse{
		Message:   "Logged out successfully",
		RevokedAt: time.Now().UTC(),
	})
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leasepay/backend/internal/domain/identity"
	"go.uber.org/zap"
)

// PermissionConfig holds configuration for permission middleware
type PermissionConfig struct {
	Logger *zap.Logger
}

// RequireCapability rejects callers whose role lacks capability.
// It must run after the JWT middleware.
func RequireCapability(capability identity.Capability) gin.HandlerFunc {
	return RequireAnyCapabilityWithConfig(PermissionConfig{}, capability)
}

// RequireAnyCapability passes callers holding at least one of capabilities
func RequireAnyCapability(capabilities ...identity.Capability) gin.HandlerFunc {
	return RequireAnyCapabilityWithConfig(PermissionConfig{}, capabilities...)
}

// RequireAnyCapabilityWithConfig is RequireAnyCapability with logging
func RequireAnyCapabilityWithConfig(cfg PermissionConfig, capabilities ...identity.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":       "ERR_UNAUTHORIZED",
					"message":    "Authentication required",
					"request_id": GetRequestID(c),
				},
			})
			return
		}

		granted := principal.Capabilities()
		for _, capability := range capabilities {
			if granted.Has(capability) {
				c.Next()
				return
			}
		}

		if cfg.Logger != nil {
			cfg.Logger.Warn("Capability denied",
				zap.String("user_id", principal.UserID.String()),
				zap.String("role", string(principal.Role)),
				zap.Strings("required_any", capabilityStrings(capabilities)),
				zap.String("path", c.Request.URL.Path),
			)
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":       "ERR_FORBIDDEN",
				"message":    "Access denied: insufficient permissions",
				"request_id": GetRequestID(c),
			},
		})
	}
}

func capabilityStrings(capabilities []identity.Capability) []string {
	out := make([]string, len(capabilities))
	for i, capability := range capabilities {
		out[i] = string(capability)
	}
	return out
}

package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/leasepay/backend/internal/infrastructure/telemetry"
)

// ProfilingConfig holds configuration for profiling label middleware
type ProfilingConfig struct {
	Enabled          bool
	SkipPaths        []string
	SkipPathPrefixes []string
}

// DefaultProfilingConfig skips health checks
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:   true,
		SkipPaths: []string{"/health", "/healthz", "/ready"},
	}
}

// Profiling tags CPU samples taken while a request is handled with its
// route, method and org. Run it after the JWT middleware so the org is known.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig is Profiling with custom configuration
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath {
				c.Next()
				return
			}
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		telemetry.WithProfilingLabels(c.Request.Context(), profilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func profilingLabels(c *gin.Context) map[string]string {
	labels := telemetry.HTTPRequestLabels(c.FullPath(), c.Request.Method)
	if p, ok := GetPrincipal(c); ok {
		labels[telemetry.ProfilingLabelOrgID] = p.OrgID.String()
	}
	return labels
}

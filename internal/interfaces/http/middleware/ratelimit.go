package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateStore counts hits per key in fixed windows
type RateStore interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// MemoryRateStore is a RateStore local to this process
type MemoryRateStore struct {
	mu       sync.Mutex
	windows  map[string]*rateWindow
	now      func() time.Time
	lastScan time.Time
}

type rateWindow struct {
	count   int64
	resetAt time.Time
}

// NewMemoryRateStore creates an empty MemoryRateStore
func NewMemoryRateStore() *MemoryRateStore {
	return &MemoryRateStore{windows: make(map[string]*rateWindow), now: time.Now}
}

// Hit implements RateStore
func (s *MemoryRateStore) Hit(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastScan) > window {
		for k, w := range s.windows {
			if !now.Before(w.resetAt) {
				delete(s.windows, k)
			}
		}
		s.lastScan = now
	}

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, nil
}

// RateLimiter admits at most limit requests per key and window
type RateLimiter struct {
	store  RateStore
	limit  int
	window time.Duration
	logger *zap.Logger
}

// NewRateLimiter creates a RateLimiter on store, or on a MemoryRateStore
// when store is nil
func NewRateLimiter(limit int, window time.Duration, store RateStore, logger *zap.Logger) *RateLimiter {
	if store == nil {
		store = NewMemoryRateStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, limit: limit, window: window, logger: logger}
}

// Allow records a hit for key and reports whether it is within the limit
// together with the requests left. A failing store admits the request.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int) {
	count, err := rl.store.Hit(ctx, key, rl.window)
	if err != nil {
		rl.logger.Warn("Rate limit store unavailable", zap.Error(err))
		return true, rl.limit
	}
	return count <= int64(rl.limit), max(rl.limit-int(count), 0)
}

// RateLimit limits requests per authenticated user, or per client IP
// before authentication
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return RateLimitByKey(limiter, rateLimitKey)
}

// RateLimitByKey limits requests grouped by keyFunc
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining := limiter.Allow(c.Request.Context(), keyFunc(c))
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":       "ERR_RATE_LIMITED",
					"message":    "Too many requests. Please try again later.",
					"request_id": GetRequestID(c),
				},
			})
			return
		}
		c.Next()
	}
}

func rateLimitKey(c *gin.Context) string {
	if p, ok := GetPrincipal(c); ok {
		return "user:" + p.OrgID.String() + ":" + p.UserID.String()
	}
	return "ip:" + c.ClientIP()
}

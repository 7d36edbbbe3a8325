package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"nguide/admin/internal/config"
	"nguide/admin/internal/metrics"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterIdleTimeout     = 30 * time.Minute
)

// clientLimiter stores the token bucket of one client.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware limits requests per client with a token bucket.
type RateLimiterMiddleware struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	logger  *zap.Logger
}

// NewRateLimiterMiddleware creates a limiter from the configured bucket size
// and refill rate. Idle clients are dropped until ctx is done.
func NewRateLimiterMiddleware(ctx context.Context, cfg *config.Config, logger *zap.Logger) *RateLimiterMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	burst := cfg.RateLimitBucketSize
	if burst <= 0 {
		burst = 1
	}
	rm := &RateLimiterMiddleware{
		clients: make(map[string]*clientLimiter),
		rate:    rate.Limit(cfg.RateLimitRefillRate),
		burst:   burst,
		logger:  logger,
	}
	go rm.cleanupClients(ctx)
	return rm
}

// getClientLimiter retrieves or creates the limiter for a client.
func (rm *RateLimiterMiddleware) getClientLimiter(identifier string) *clientLimiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	limiter, exists := rm.clients[identifier]
	if !exists {
		limiter = &clientLimiter{limiter: rate.NewLimiter(rm.rate, rm.burst)}
		rm.clients[identifier] = limiter
	}
	limiter.lastSeen = time.Now()
	return limiter
}

// cleanupClients periodically removes idle client entries.
func (rm *RateLimiterMiddleware) cleanupClients(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rm.removeIdle(time.Now())
		}
	}
}

func (rm *RateLimiterMiddleware) removeIdle(now time.Time) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	count := 0
	for id, client := range rm.clients {
		if now.Sub(client.lastSeen) > limiterIdleTimeout {
			delete(rm.clients, id)
			count++
		}
	}
	if count > 0 {
		rm.logger.Debug("rate limiter cleanup", zap.Int("removed", count))
	}
	return count
}

// Limit creates the Gin middleware handler. Buckets are per client IP and
// route; the engine's trusted proxies decide whether X-Forwarded-For counts.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		limiter := rm.getClientLimiter(c.ClientIP() + "|" + route)
		if !limiter.limiter.Allow() {
			metrics.RateLimited.WithLabelValues(route).Inc()
			rm.logger.Warn("rate limit exceeded", zap.String("client_ip", c.ClientIP()), zap.String("route", route))
			AbortWithError(c, http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded")
			return
		}
		c.Next()
	}
}

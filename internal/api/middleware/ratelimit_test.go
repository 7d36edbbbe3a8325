package middleware_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nguide/admin/internal/api/middleware"
	"nguide/admin/internal/config"
)

func setupTestEngine(t *testing.T, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(cfg.TrustedProxies))
	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, cfg, nil)
	r.Use(rateLimiter.Limit())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/other", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}

func doRequest(r http.Handler, path, remoteAddr string) *httptest.ResponseRecorder {
	return doForwardedRequest(r, path, remoteAddr, "")
}

func doForwardedRequest(r http.Handler, path, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterMiddleware_BucketExhausted(t *testing.T) {
	router := setupTestEngine(t, &config.Config{RateLimitBucketSize: 2, RateLimitRefillRate: 0})

	assert.Equal(t, http.StatusOK, doRequest(router, "/test", "1.2.3.4:12345").Code)
	assert.Equal(t, http.StatusOK, doRequest(router, "/test", "1.2.3.4:12345").Code)

	w := doRequest(router, "/test", "1.2.3.4:12345")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "RATE_LIMITED", body["error"].(map[string]interface{})["code"])
}

func TestRateLimiterMiddleware_PerClientAndRoute(t *testing.T) {
	router := setupTestEngine(t, &config.Config{RateLimitBucketSize: 1, RateLimitRefillRate: 0})

	assert.Equal(t, http.StatusOK, doRequest(router, "/test", "5.6.7.8:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "/test", "5.6.7.8:1").Code)

	assert.Equal(t, http.StatusOK, doRequest(router, "/test", "9.9.9.9:1").Code)
	assert.Equal(t, http.StatusOK, doRequest(router, "/other", "5.6.7.8:1").Code)
}

func TestRateLimiterMiddleware_ZeroBucketStillAdmitsOne(t *testing.T) {
	router := setupTestEngine(t, &config.Config{})
	assert.Equal(t, http.StatusOK, doRequest(router, "/test", "7.7.7.7:1").Code)
}

func TestRateLimiterMiddleware_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	router := setupTestEngine(t, &config.Config{RateLimitBucketSize: 2, RateLimitRefillRate: 0})

	codes := map[int]int{}
	for i := 0; i < 20; i++ {
		xff := fmt.Sprintf("203.0.113.%d", i+1)
		codes[doForwardedRequest(router, "/test", "1.2.3.4:12345", xff).Code]++
	}
	assert.Equal(t, 2, codes[http.StatusOK])
	assert.Equal(t, 18, codes[http.StatusTooManyRequests])
}

func TestRateLimiterMiddleware_UsesForwardedForFromTrustedProxy(t *testing.T) {
	router := setupTestEngine(t, &config.Config{
		RateLimitBucketSize: 1,
		RateLimitRefillRate: 0,
		TrustedProxies:      []string{"10.0.0.0/8"},
	})

	assert.Equal(t, http.StatusOK, doForwardedRequest(router, "/test", "10.0.0.5:1", "203.0.113.1").Code)
	assert.Equal(t, http.StatusOK, doForwardedRequest(router, "/test", "10.0.0.5:1", "203.0.113.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, doForwardedRequest(router, "/test", "10.0.0.5:1", "203.0.113.1").Code)
}

func TestRateLimiterMiddleware_FractionalRefill(t *testing.T) {
	router := setupTestEngine(t, &config.Config{RateLimitBucketSize: 1, RateLimitRefillRate: 0.001})

	assert.Equal(t, http.StatusOK, doRequest(router, "/test", "4.4.4.4:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "/test", "4.4.4.4:1").Code)
}

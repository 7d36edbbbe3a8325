package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"nguide/admin/internal/metrics"
)

const (
	idempotencyHeader   = "Idempotency-Key"
	idempotencyLockTTL  = 30 * time.Second
	idempotencyProgress = "PROCESSING"
)

// storedResponse is the replayable result of a completed request.
type storedResponse struct {
	Fingerprint string          `json:"fingerprint"`
	Status      int             `json:"status"`
	Body        json.RawMessage `json:"body"`
}

// idempotencyKey scopes a client key to the user and the concrete request
// path, so one key reused on another resource never replays its response.
func idempotencyKey(userID, path, key string) string {
	return fmt.Sprintf("idempotency:%s:%s:%s", userID, path, key)
}

// requestFingerprint hashes the method, path and body of a request.
func requestFingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// bodyRecorder copies the response body while writing it.
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of a POST, PUT or PATCH that
// repeats an Idempotency-Key. Keys are scoped per user and request path. A
// request with a key still in progress gets 409, and a reused key with a
// different body gets 422. Without Redis it is a no-op.
func Idempotency(rdb redis.UniversalClient, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		method := c.Request.Method
		if rdb == nil || (method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch) {
			c.Next()
			return
		}
		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				AbortWithError(c, http.StatusBadRequest, CodeValidation, "Unreadable request body")
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
		path := c.Request.URL.Path
		idemKey := idempotencyKey(c.GetString(ContextKeyUserID), path, key)
		fingerprint := requestFingerprint(method, path, body)
		ctx := c.Request.Context()

		val, err := rdb.Get(ctx, idemKey).Result()
		switch {
		case err == nil:
			if val == idempotencyProgress {
				AbortWithError(c, http.StatusConflict, CodeConflict, "Request with this Idempotency-Key is in progress")
				return
			}
			var stored storedResponse
			if jsonErr := json.Unmarshal([]byte(val), &stored); jsonErr == nil {
				if stored.Fingerprint != fingerprint {
					AbortWithError(c, http.StatusUnprocessableEntity, CodeValidation, "Idempotency-Key was used with a different request")
					return
				}
				metrics.IdempotencyReplays.Inc()
				c.Header("X-Idempotency-Hit", "true")
				c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
				c.Abort()
				return
			}
			logger.Warn("discarding unreadable idempotency record", zap.String("key", idemKey))
		case !errors.Is(err, redis.Nil):
			logger.Warn("idempotency lookup failed", zap.Error(err))
			c.Next()
			return
		}

		acquired, err := rdb.SetNX(ctx, idemKey, idempotencyProgress, idempotencyLockTTL).Result()
		if err != nil {
			logger.Warn("idempotency lock failed", zap.Error(err))
			c.Next()
			return
		}
		if !acquired {
			AbortWithError(c, http.StatusConflict, CodeConflict, "Request with this Idempotency-Key is in progress")
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()

		status := recorder.Status()
		if status >= http.StatusInternalServerError {
			rdb.Del(ctx, idemKey)
			return
		}
		if !json.Valid(recorder.buf.Bytes()) {
			rdb.Del(ctx, idemKey)
			return
		}
		data, err := json.Marshal(storedResponse{
			Fingerprint: fingerprint,
			Status:      status,
			Body:        json.RawMessage(recorder.buf.Bytes()),
		})
		if err != nil {
			rdb.Del(ctx, idemKey)
			return
		}
		if err := rdb.Set(ctx, idemKey, data, ttl).Err(); err != nil {
			logger.Warn("idempotency store failed", zap.Error(err))
		}
	}
}

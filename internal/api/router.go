package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nguide/admin/internal/access"
	"nguide/admin/internal/api/handlers"
	"nguide/admin/internal/api/middleware"
	"nguide/admin/internal/config"
	"nguide/admin/internal/email"
	"nguide/admin/internal/logging"
	"nguide/admin/internal/services"
	"nguide/admin/internal/tasks"
)

// Services bundles what the public API handlers depend on.
type Services struct {
	Quotations services.IQuotationService
	Access     access.IAccessService
	Tours      services.ITourService
}

// SetupRouter configures and returns the main Gin engine. ctx bounds the
// rate limiter's background cleanup.
func SetupRouter(ctx context.Context, cfg *config.Config, svc Services, taskClient handlers.IAsynqClient, rdb redis.UniversalClient, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		if logger != nil {
			logger.Warn("ignoring trusted proxies", zap.Error(err))
		}
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(logging.RequestLogger(logger), gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, cfg, logger)

	quotationHandler := handlers.NewRestQuotationHandler(cfg, svc.Quotations, svc.Access, taskClient, logger)
	tourHandler := handlers.NewRestTourHandler(svc.Tours)

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Public quotation access
		public := v1.Group("/quotations")
		public.Use(rateLimiter.Limit())
		{
			public.POST("/verify", quotationHandler.VerifyAccessCode)
			public.GET("/:id/public", quotationHandler.GetPublicQuotation)
		}

		staff := v1.Group("/")
		staff.Use(
			middleware.AuthMiddleware(cfg.JwtSecret),
			middleware.StaffMiddleware(),
			middleware.Idempotency(rdb, cfg.IdempotencyTTL, logger),
		)
		{
			staff.POST("/quotations", quotationHandler.CreateQuotation)
			staff.GET("/quotations", quotationHandler.ListQuotations)
			staff.GET("/quotations/:id", quotationHandler.GetQuotation)
			staff.PUT("/quotations/:id", quotationHandler.UpdateQuotation)
			staff.DELETE("/quotations/:id", quotationHandler.DeleteQuotation)
			staff.POST("/quotations/:id/generate-access-code", quotationHandler.GenerateAccessCode)
			staff.POST("/quotations/:id/regenerate-access-code", quotationHandler.RegenerateAccessCode)

			staff.POST("/tours", tourHandler.CreateTour)
			staff.GET("/tours", tourHandler.ListTours)
			staff.GET("/tours/slug/:slug", tourHandler.GetTourBySlug)
			staff.GET("/tours/:id", tourHandler.GetTour)
			staff.PUT("/tours/:id", tourHandler.UpdateTour)
			staff.PATCH("/tours/:id", tourHandler.UpdateTour)
			staff.POST("/tours/:id/publish", tourHandler.PublishTour)
			staff.DELETE("/tours/:id", tourHandler.DeleteTour)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine.
// rdb backs getTestEmail and may be nil.
func SetupServiceRouter(rdb *redis.Client, taskClient handlers.IAsynqClient, shutdownChan chan<- struct{}, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		if logger != nil {
			logger.Warn("ignoring trusted proxies", zap.Error(err))
		}
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(logging.RequestLogger(logger), gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			logger.Info("received shutdown command via service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				logger.Warn("shutdown channel already signaled")
			}

		case "backfillAccessCodes":
			batch := tasks.DefaultBackfillBatch
			if len(req.Arguments) > 0 && string(req.Arguments) != "null" {
				var args []int // optional [batchSize]
				if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) > 1 || (len(args) == 1 && args[0] <= 0) {
					c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [batchSize]"})
					return
				}
				if len(args) == 1 {
					batch = args[0]
				}
			}
			if taskClient == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Task queue unavailable"})
				return
			}
			task, err := tasks.NewAccessCodeBackfillTask(batch)
			if err != nil {
				logger.Error("failed to build access code backfill task", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to enqueue backfill"})
				return
			}
			info, err := taskClient.EnqueueContext(c.Request.Context(), task)
			if err != nil {
				logger.Error("failed to enqueue access code backfill", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to enqueue backfill"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "result": gin.H{"taskId": info.ID, "queue": info.Queue, "batchSize": batch}})

		case "getTestEmail":
			var args []string // Expect ["email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 1 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [email]"})
				return
			}
			if rdb == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Redis unavailable"})
				return
			}
			redisKey := email.OutboxKey(args[0])

			// Poll Redis briefly for the key
			var emailJSON string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ {
				emailJSON, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey)
					break
				}
				if getErr != redis.Nil {
					logger.Error("service API: reading outbox", zap.String("key", redisKey), zap.Error(getErr))
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}

			var msg email.OutboxMessage
			if err := json.Unmarshal([]byte(emailJSON), &msg); err != nil {
				logger.Error("service API: decoding outbox message", zap.String("key", redisKey), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": msg})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

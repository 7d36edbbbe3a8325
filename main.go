package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"nguide/admin/internal/access"
	"nguide/admin/internal/api"
	"nguide/admin/internal/cache"
	"nguide/admin/internal/config"
	"nguide/admin/internal/db"
	"nguide/admin/internal/email"
	"nguide/admin/internal/logging"
	"nguide/admin/internal/services"
	"nguide/admin/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		if errors.Is(err, config.ErrMissingJwtSecret) {
			log.Fatalf("Configuration error: %v", err)
		}
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			logger.Error("error disconnecting from MongoDB", zap.Error(err))
		}
	}()
	if err := db.EnsureIndexes(ctx, mongoDb); err != nil {
		logger.Fatal("failed to ensure indexes", zap.Error(err))
	}

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			logger.Error("error disconnecting from Redis", zap.Error(err))
		}
	}()

	tokens, err := access.NewTokenIssuer(cfg.JwtSecret, cfg.QuotationTokenTTL)
	if err != nil {
		logger.Fatal("failed to initialize access token issuer", zap.Error(err))
	}

	// Initialize Services needed by handlers and/or task processor
	quotationService := services.NewQuotationService(mongoDb, cfg)
	tourService := services.NewTourService(mongoDb, cfg, cache.NewListCache(redisClient, cfg.ListCacheTTL), logger)
	accessService := access.NewService(services.NewQuotationAccessStore(mongoDb), tokens, logger)
	emailSender := email.NewSender(cfg, redisClient, logger)

	// Initialize Task Client
	taskClient := tasks.NewClient(cfg)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error("error closing task client", zap.Error(err))
		}
	}()

	taskProcessor := tasks.NewTaskProcessor(cfg, emailSender, quotationService, accessService, logger)

	// WaitGroup for managing goroutines
	var wg sync.WaitGroup

	// Channel to signal shutdown from Service API
	shutdownChan := make(chan struct{}, 1)

	// Start Service API (always runs)
	serviceSrv := &http.Server{
		Addr:              ":" + cfg.ServiceApiPort,
		Handler:           api.SetupServiceRouter(redisClient, taskClient, shutdownChan, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("service API listening", zap.String("port", cfg.ServiceApiPort))
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("service API ListenAndServe error", zap.Error(err))
		}
		logger.Info("service API server stopped")
	}()

	// --- Mode-specific servers ---
	var mainApiSrv *http.Server
	var backgroundTaskSrv *asynq.Server

	logger.Info("starting application", zap.String("mode", cfg.RunMode))

	apiMode := func() {
		router := api.SetupRouter(ctx, cfg, api.Services{
			Quotations: quotationService,
			Access:     accessService,
			Tours:      tourService,
		}, taskClient, redisClient, logger)
		mainApiSrv = &http.Server{
			Addr:              ":" + cfg.ApiPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("main API listening", zap.String("port", cfg.ApiPort))
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("main API ListenAndServe error", zap.Error(err))
			}
			logger.Info("main API server stopped")
		}()
	}

	bgMode := func() {
		backgroundTaskSrv = tasks.NewServer(cfg, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("background task server starting")
			if err := backgroundTaskSrv.Run(taskProcessor.Mux()); err != nil {
				logger.Fatal("background task server error", zap.Error(err))
			}
			logger.Info("background task server stopped")
		}()
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		logger.Fatal("invalid run mode", zap.String("mode", cfg.RunMode))
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case <-shutdownChan:
		logger.Info("shutdown requested via service API")
	}
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		logger.Error("service API server shutdown error", zap.Error(err))
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			logger.Error("main API server shutdown error", zap.Error(err))
		}
	}
	if backgroundTaskSrv != nil {
		backgroundTaskSrv.Shutdown()
	}

	wg.Wait()
	logger.Info("server gracefully stopped")
}

package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingJwtSecret is returned by Load when no signing secret is configured.
// Quotation access tokens cannot be minted or verified without it.
var ErrMissingJwtSecret = errors.New("missing required environment variable: JWT_SECRET")

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret         string
	QuotationTokenTTL time.Duration

	// Server
	ApiPort        string
	ServiceApiPort string
	PublicBaseURL  string // Used to build share URLs; falls back to the request host when empty
	LogLevel       string

	// Quotations
	DefaultCurrency string
	IdempotencyTTL  time.Duration

	// Tours
	ListCacheTTL time.Duration

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string

	// App Defaults
	AppName string

	// Rate limiting for public quotation endpoints
	RateLimitBucketSize int
	RateLimitRefillRate float64 // tokens per second

	// Proxies whose X-Forwarded-For is trusted for the client IP. Empty trusts none.
	TrustedProxies []string
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "nguide")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if cfg.JwtSecret == "" {
		return nil, ErrMissingJwtSecret
	}
	cfg.ApiPort = getEnv("API_PORT", "3000")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.PublicBaseURL = strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.DefaultCurrency = getEnv("DEFAULT_CURRENCY", "THB")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@nguide.example.com")
	cfg.AppName = getEnv("APP_NAME", "NGuide")

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	tokenTTLHours, err := strconv.ParseInt(getEnv("QUOTATION_TOKEN_TTL_HOURS", "168"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid QUOTATION_TOKEN_TTL_HOURS: %w", err)
	}
	if tokenTTLHours <= 0 {
		return nil, fmt.Errorf("invalid QUOTATION_TOKEN_TTL_HOURS: must be positive, got %d", tokenTTLHours)
	}
	cfg.QuotationTokenTTL = time.Duration(tokenTTLHours) * time.Hour

	idempotencyTTLHours, err := strconv.ParseInt(getEnv("IDEMPOTENCY_TTL_HOURS", "24"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid IDEMPOTENCY_TTL_HOURS: %w", err)
	}
	cfg.IdempotencyTTL = time.Duration(idempotencyTTLHours) * time.Hour

	listCacheTTLSeconds, err := strconv.ParseInt(getEnv("LIST_CACHE_TTL_SECONDS", "60"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LIST_CACHE_TTL_SECONDS: %w", err)
	}
	cfg.ListCacheTTL = time.Duration(listCacheTTLSeconds) * time.Second

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.ParseFloat(getEnv("RATE_LIMIT_REFILL_RATE", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}
	if cfg.RateLimitRefillRate < 0 || math.IsNaN(cfg.RateLimitRefillRate) || math.IsInf(cfg.RateLimitRefillRate, 0) {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: must be a finite non-negative number, got %v", cfg.RateLimitRefillRate)
	}

	cfg.TrustedProxies, err = parseTrustedProxies(getEnv("TRUSTED_PROXIES", ""))
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseTrustedProxies splits a comma separated list of IPs or CIDRs.
func parseTrustedProxies(raw string) ([]string, error) {
	var proxies []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, _, err := net.ParseCIDR(part); err != nil && net.ParseIP(part) == nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", part)
		}
		proxies = append(proxies, part)
	}
	return proxies, nil
}

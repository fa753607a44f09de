package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr          = ":8080"
	defaultDatabaseURL       = "jadwa.db"
	defaultJWTSecret         = "change-me-jwt-secret"
	defaultJWTTTL            = "24h"
	defaultCurrency          = "SAR"
	defaultRateLimitRequests = "120"
	defaultRateLimitWindow   = "1m"
	defaultRateLimitBurst    = "40"
	defaultRelaySendRate     = "5"
	defaultRelaySendBurst    = "20"
	defaultRelayBuffer       = "256"
	defaultOtelSampleRate    = "0.1"
	defaultServiceName       = "jadwa-api"
	defaultLogLevel          = "info"
	defaultNodeID            = "1"
	defaultNotifyRetention   = "720h"
	defaultNotifyCleanup     = "24h"
)

type Config struct {
	AppEnv   string
	HTTPAddr string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	JWTSecret string
	JWTTTL    time.Duration

	CORSAllowedOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitBurst    int

	RelaySendRate   float64
	RelaySendBurst  int
	RelayBufferSize int

	OtelEnabled    bool
	OtelEndpoint   string
	OtelInsecure   bool
	OtelSampleRate float64
	ServiceName    string

	Currency string
	NodeID   int64

	NotificationRetention       time.Duration
	NotificationCleanupInterval time.Duration
}

// Load reads the process environment, optionally seeded from a .env file in
// the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel)))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.Currency = strings.ToUpper(strings.TrimSpace(getEnv("PAYMENT_CURRENCY", defaultCurrency)))
	cfg.ServiceName = strings.TrimSpace(getEnv("OTEL_SERVICE_NAME", defaultServiceName))
	cfg.OtelEndpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	cfg.OtelEnabled = parseBoolEnv("OTEL_ENABLED", "false")
	cfg.OtelInsecure = parseBoolEnv("OTEL_INSECURE", "true")
	cfg.CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	var err error
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", defaultJWTTTL); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = parseDurationEnv("RATE_LIMIT_WINDOW", defaultRateLimitWindow); err != nil {
		return nil, err
	}
	if cfg.NotificationRetention, err = parseDurationEnv("NOTIFICATION_RETENTION", defaultNotifyRetention); err != nil {
		return nil, err
	}
	if cfg.NotificationCleanupInterval, err = parseDurationEnv("NOTIFICATION_CLEANUP_INTERVAL", defaultNotifyCleanup); err != nil {
		return nil, err
	}
	if cfg.RateLimitRequests, err = parseIntEnv("RATE_LIMIT_REQUESTS", defaultRateLimitRequests); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = parseIntEnv("RATE_LIMIT_BURST", defaultRateLimitBurst); err != nil {
		return nil, err
	}
	if cfg.RelaySendRate, err = parseFloatEnv("RELAY_SEND_RATE", defaultRelaySendRate); err != nil {
		return nil, err
	}
	if cfg.RelaySendBurst, err = parseIntEnv("RELAY_SEND_BURST", defaultRelaySendBurst); err != nil {
		return nil, err
	}
	if cfg.RelayBufferSize, err = parseIntEnv("RELAY_BUFFER_SIZE", defaultRelayBuffer); err != nil {
		return nil, err
	}
	if cfg.OtelSampleRate, err = parseFloatEnv("OTEL_SAMPLE_RATE", defaultOtelSampleRate); err != nil {
		return nil, err
	}
	nodeID, err := parseIntEnv("NODE_ID", defaultNodeID)
	if err != nil {
		return nil, err
	}
	cfg.NodeID = int64(nodeID)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	slog.Info("config loaded",
		"env", cfg.AppEnv,
		"http_addr", cfg.HTTPAddr,
		"redis", cfg.RedisURL != "",
		"otel", cfg.OtelEnabled,
	)

	return cfg, nil
}

// IsProduction reports whether hardening rules apply.
func (c *Config) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *Config) error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if cfg.RateLimitRequests <= 0 || cfg.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.RelaySendRate < 0 || cfg.RelaySendBurst < 0 {
		return fmt.Errorf("RELAY_SEND_RATE and RELAY_SEND_BURST must be >= 0")
	}
	if cfg.RelayBufferSize <= 0 {
		return fmt.Errorf("RELAY_BUFFER_SIZE must be > 0")
	}
	if cfg.NodeID < 0 || cfg.NodeID > 1023 {
		return fmt.Errorf("NODE_ID must be within [0, 1023]")
	}
	if len(cfg.Currency) != 3 {
		return fmt.Errorf("PAYMENT_CURRENCY must be an ISO 4217 code")
	}
	if cfg.OtelEnabled && cfg.OtelEndpoint == "" {
		return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED=true")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if !isPostgresURL(cfg.DatabaseURL) {
			return fmt.Errorf("in prod/release DATABASE_URL must point to PostgreSQL")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseFloatEnv(name, fallback string) (float64, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return f, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

const (
	ServiceName    = "sales-api"
	ServiceVersion = "0.1.0"
)

const (
	TracesPath    = "/otlp/v1/traces"
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

type Config struct {
	Port           string
	UsersAPIURL    string
	ProductsAPIURL string
	RequestTimeout time.Duration

	DatabaseURL    string
	RedisAddr      string
	IdempotencyTTL time.Duration

	KafkaBroker string
	KafkaTopic  string

	OtelEndpoint   string
	OtelAuthHeader string

	StrictStockUpdates bool
	LogLevel           string
}

// Load reads the configuration from the environment. Only the collaborator
// URLs have to be valid; every optional backend stays disabled when unset.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getenv("PORT", "8081"),
		UsersAPIURL:    getenv("USERS_API_URL", "http://localhost:8080/api/v1/users"),
		ProductsAPIURL: getenv("PRODUCTS_API_URL", "http://localhost:8083/api/v1/products"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		KafkaBroker:    os.Getenv("KAFKA_BROKER"),
		KafkaTopic:     getenv("KAFKA_TOPIC", "SaleCompleted"),
		OtelEndpoint:   os.Getenv("OTEL_ENDPOINT"),
		OtelAuthHeader: os.Getenv("OTEL_AUTH_HEADER"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
	}

	var errs []error

	timeoutMS, err := strconv.Atoi(getenv("REQUEST_TIMEOUT_MS", "2500"))
	if err != nil || timeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT_MS must be a positive integer"))
	}
	cfg.RequestTimeout = time.Duration(timeoutMS) * time.Millisecond

	cfg.IdempotencyTTL, err = time.ParseDuration(getenv("IDEMPOTENCY_TTL", "24h"))
	if err != nil || cfg.IdempotencyTTL <= 0 {
		errs = append(errs, fmt.Errorf("IDEMPOTENCY_TTL must be a positive duration"))
	}

	cfg.StrictStockUpdates, err = strconv.ParseBool(getenv("STRICT_STOCK_UPDATES", "false"))
	if err != nil {
		errs = append(errs, fmt.Errorf("STRICT_STOCK_UPDATES must be a boolean"))
	}

	for name, raw := range map[string]string{"USERS_API_URL": cfg.UsersAPIURL, "PRODUCTS_API_URL": cfg.ProductsAPIURL} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/glowmart/backend-glow/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	AccessTokenTTL     time.Duration
	CORSAllowedOrigins []string

	LogFormat string
	LogLevel  string

	TracingEndpoint string
	TracingRatio    float64

	GlobalRateLimit   string
	PromoRateMax      int
	PromoRateWindow   time.Duration
	CheckoutRateMax   int
	CheckoutRateWin   time.Duration
	IdempotencyTTL    time.Duration
	CartTTL           time.Duration
	Currency          string
	OrderWebhookURL   string
	CatalogCacheTTL   time.Duration
	ShipInsideDefault decimal.Decimal
	ShipOutsideDflt   decimal.Decimal
	FreeShipThreshold decimal.Decimal
	ShippingInTotal   bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          valueOrDefault(k.String("JWT_ISSUER"), "glowmart"),
		JWTAudience:        valueOrDefault(k.String("JWT_AUDIENCE"), "glow-frontend"),
		AccessTokenTTL:     parseDuration(k.String("ACCESS_TOKEN_TTL"), "15m"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		LogFormat: valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:  valueOrDefault(k.String("LOG_LEVEL"), "info"),

		TracingEndpoint: k.String("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TracingRatio:    k.Float64("TRACING_SAMPLING_RATIO"),

		GlobalRateLimit: valueOrDefault(k.String("GLOBAL_RATE_LIMIT"), "300-M"),
		PromoRateMax:    intOrDefault(k.Int("PROMO_RATE_MAX"), 20),
		PromoRateWindow: parseDuration(k.String("PROMO_RATE_WINDOW"), "1m"),
		CheckoutRateMax: intOrDefault(k.Int("CHECKOUT_RATE_MAX"), 10),
		CheckoutRateWin: parseDuration(k.String("CHECKOUT_RATE_WINDOW"), "1m"),
		IdempotencyTTL:  parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CartTTL:         parseDuration(k.String("CART_TTL"), "168h"),
		Currency:        valueOrDefault(k.String("CURRENCY"), "BDT"),
		OrderWebhookURL: k.String("ORDER_WEBHOOK_URL"),
		CatalogCacheTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),

		ShipInsideDefault: parseDecimal(k.String("PRICING_INSIDE_ZONE_DEFAULT"), "50"),
		ShipOutsideDflt:   parseDecimal(k.String("PRICING_OUTSIDE_ZONE_DEFAULT"), "100"),
		FreeShipThreshold: parseDecimal(k.String("PRICING_FREE_SHIPPING_THRESHOLD"), "0"),
		ShippingInTotal:   parseBool(k.String("PRICING_INCLUDE_SHIPPING_IN_TOTAL")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// PricingOptions derives the calculator policy for the cart page. Checkout
// flips IncludeShippingInTotal on regardless of this default.
func (c *Config) PricingOptions() pricing.Options {
	return pricing.Options{
		InsideZoneDefault:      c.ShipInsideDefault,
		OutsideZoneDefault:     c.ShipOutsideDflt,
		FreeShippingThreshold:  c.FreeShipThreshold,
		IncludeShippingInTotal: c.ShippingInTotal,
	}
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseDecimal(value, fallback string) decimal.Decimal {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := decimal.NewFromString(base)
	if err != nil {
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}

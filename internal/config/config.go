package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	CartTTL          time.Duration
	CampaignCacheTTL time.Duration
	IdempotencyTTL   time.Duration

	RateLimitPeriod   time.Duration
	RateLimitRequests int64

	// Region code -> flat tax rate in basis points, with a default for
	// unrecognized regions.
	TaxRates      map[string]int
	TaxDefaultBps int

	// Delivery method -> flat shipping cost in minor units.
	ShippingRates map[string]int64

	// Spend-and-save pair, shared by the resolver and the unlock messaging.
	SpendThreshold int64
	SpendReward    int64
	MsgUnlocked    string
	MsgSpendMore   string

	CouponPerUserLimit      int
	CampaignDefaultPriority int
	SortCampaignsByPriority bool
	CurrencyCode            string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	taxRates, err := parseIntTable(valueOrDefault(k.String("PRICING_TAX_RATES"), "KY:600"))
	if err != nil {
		return nil, fmt.Errorf("PRICING_TAX_RATES: %w", err)
	}
	shippingRates, err := parseMoneyTable(valueOrDefault(k.String("SHIPPING_RATES"), "STANDARD:599,EXPRESS:1299,NEXT_DAY:2499"))
	if err != nil {
		return nil, fmt.Errorf("SHIPPING_RATES: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		CartTTL:          parseDuration(k.String("CART_TTL"), "168h"),
		CampaignCacheTTL: parseDuration(k.String("CAMPAIGN_CACHE_TTL"), "60s"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		RateLimitPeriod:   parseDuration(k.String("RATE_LIMIT_PERIOD"), "1m"),
		RateLimitRequests: parseInt64(k.String("RATE_LIMIT_REQUESTS"), 120),

		TaxRates:      taxRates,
		TaxDefaultBps: int(parseInt64(k.String("PRICING_TAX_DEFAULT_BPS"), 0)),

		ShippingRates: shippingRates,

		SpendThreshold: parseInt64(k.String("PROMO_SPEND_THRESHOLD"), 10000),
		SpendReward:    parseInt64(k.String("PROMO_SPEND_REWARD"), 1500),
		MsgUnlocked:    valueOrDefault(k.String("PROMO_MSG_UNLOCKED"), "You unlocked {{reward}} off your order!"),
		MsgSpendMore:   valueOrDefault(k.String("PROMO_MSG_SPEND_MORE"), "Spend {{missing}} more to save {{reward}}!"),

		CouponPerUserLimit:      int(parseInt64(k.String("COUPON_PER_USER_LIMIT"), 1)),
		CampaignDefaultPriority: int(parseInt64(k.String("CAMPAIGN_DEFAULT_PRIORITY"), 100)),
		SortCampaignsByPriority: parseBool(valueOrDefault(k.String("CAMPAIGN_SORT_BY_PRIORITY"), "true")),
		CurrencyCode:            valueOrDefault(k.String("CURRENCY_CODE"), "USD"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
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

// parseIntTable parses "KEY:VALUE,KEY:VALUE" pairs into a map. Malformed
// entries are a configuration error rather than something to guess around.
func parseIntTable(value string) (map[string]int, error) {
	out := map[string]int{}
	for _, pair := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(pair)
		if trimmed == "" {
			continue
		}
		key, raw, ok := strings.Cut(trimmed, ":")
		if !ok {
			return nil, fmt.Errorf("malformed entry %q", trimmed)
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("malformed value in %q", trimmed)
		}
		out[strings.ToUpper(strings.TrimSpace(key))] = parsed
	}
	return out, nil
}

func parseMoneyTable(value string) (map[string]int64, error) {
	ints, err := parseIntTable(value)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(ints))
	for key, v := range ints {
		out[key] = int64(v)
	}
	return out, nil
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
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

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
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

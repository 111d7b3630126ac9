package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Slot backends.
const (
	SlotMemory = "memory"
	SlotFile   = "file"
	SlotRedis  = "redis"
	SlotMongo  = "mongo"
)

type Config struct {
	HTTPPort         string
	LogLevel         string
	StorefrontOrigin string
	CheckoutPath     string
	SecureCookies    bool
	PaymentsAPIURL   string
	CatalogAPIURL    string
	GatewayAPIURL    string
	GatewaySecret    string
	// GatewaySessionKey reads hosted checkout sessions: a restricted key with that
	// permission, or the secret key.
	GatewaySessionKey string

	CartSlot      string
	CartSlotDir   string
	RedisAddr     string
	RedisPassword string
	MongoURI      string
	MongoDBName   string
	KafkaBrokers  []string

	PricingPolicy   string
	DefaultCurrency string
	PromoDBPath     string

	RequestTimeout     time.Duration
	UpstreamTimeout    time.Duration
	ShutdownTimeout    time.Duration
	SessionIdleTTL     time.Duration
	MaxRequestBodySize int64
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		StorefrontOrigin: getEnv("STOREFRONT_ORIGIN", "http://localhost:5173"),
		CheckoutPath:     getEnv("CHECKOUT_PATH", "/checkout"),
		PaymentsAPIURL:   getEnv("PAYMENTS_API_URL", "http://localhost:8081"),
		CatalogAPIURL:    getEnv("CATALOG_API_URL", "http://localhost:8082"),
		GatewayAPIURL:    getEnv("GATEWAY_API_URL", "https://api.stripe.com"),
		GatewaySecret:    getEnv("GATEWAY_SECRET_KEY", ""),

		CartSlot:      strings.ToLower(getEnv("CART_SLOT", SlotMemory)),
		CartSlotDir:   getEnv("CART_SLOT_DIR", "./data/carts"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "storefront"),
		KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "")),

		PricingPolicy:   getEnv("PRICING_POLICY", ""),
		DefaultCurrency: strings.ToLower(getEnv("DEFAULT_CURRENCY", "chf")),
		PromoDBPath:     getEnv("PROMO_DB_PATH", "./data/promos.db"),

		MaxRequestBodySize: 1 << 20, // 1MB
	}
	cfg.GatewaySessionKey = getEnv("GATEWAY_SESSION_KEY", cfg.GatewaySecret)

	var err error
	if cfg.SecureCookies, err = getBool("SECURE_COOKIES", strings.HasPrefix(cfg.StorefrontOrigin, "https://")); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = getDuration("UPSTREAM_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL, err = getDuration("SESSION_IDLE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}

	switch cfg.CartSlot {
	case SlotMemory, SlotFile, SlotRedis, SlotMongo:
	default:
		return nil, fmt.Errorf("unknown CART_SLOT %q", cfg.CartSlot)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"log"
	"strings"
	"time"
)

// DefaultRateKeyStrategy keys a bucket by client ip, user and route.
const DefaultRateKeyStrategy = "ip_user_route"

// RateKeyStrategies are the bucket key layouts the token bucket knows.
// "parking" shares one bucket per tenant.
var RateKeyStrategies = []string{
	"ip", "user", "parking", "route",
	"ip_user", "ip_route", "user_route", DefaultRateKeyStrategy,
}

// RateLimitConfig drives the Redis token bucket in front of the API.
// Buckets are keyed by KeyStrategy, one of RateKeyStrategies.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  RATE_LIMIT_BURST and
// RATE_LIMIT_REFILL_EVERY are shorthands that override capacity and refill.
// Out-of-range numbers are clamped and an unknown key strategy falls back
// to DefaultRateKeyStrategy.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    strings.ToLower(strings.TrimSpace(envStr("RATE_LIMIT_KEY_STRATEGY", DefaultRateKeyStrategy))),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
		cfg.Capacity = b
	}
	if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		cfg.RefillTokens = 1
		cfg.RefillInterval = every
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	if !ValidRateKeyStrategy(cfg.KeyStrategy) {
		log.Printf("config: unknown RATE_LIMIT_KEY_STRATEGY %q, using %s", cfg.KeyStrategy, DefaultRateKeyStrategy)
		cfg.KeyStrategy = DefaultRateKeyStrategy
	}
	return cfg
}

// ValidRateKeyStrategy reports whether s is one of RateKeyStrategies.
func ValidRateKeyStrategy(s string) bool {
	for _, known := range RateKeyStrategies {
		if s == known {
			return true
		}
	}
	return false
}

package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig tunes the Redis token bucket guarding the credential
// endpoints.  The zero configuration yields a bucket of 30 requests
// refilled one per second, keyed per caller and route.
type RateLimitConfig struct {
	Enabled     bool
	Burst       int           // bucket capacity
	RefillEvery time.Duration // one token per interval
	TTL         time.Duration // idle bucket lifetime in Redis
	Prefix      string        // key namespace
}

func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:     boolOr("RATE_LIMIT_ENABLED", true),
		Burst:       intOr("RATE_LIMIT_BURST", 30),
		RefillEvery: durOr("RATE_LIMIT_REFILL_EVERY", time.Second),
		TTL:         durOr("RATE_LIMIT_TTL", 10*time.Minute),
		Prefix:      strOr("RATE_LIMIT_PREFIX", "rl"),
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.RefillEvery <= 0 {
		cfg.RefillEvery = time.Second
	}
	// Buckets must outlive several refill intervals or idle callers
	// reset to a full burst too eagerly.
	if min := 5 * cfg.RefillEvery; cfg.TTL < min {
		cfg.TTL = min
	}
	return cfg
}

func strOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolOr(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func intOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

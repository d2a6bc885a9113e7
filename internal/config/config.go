package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"

	"github.com/alibekd/taskboard/internal/utils"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Signing secrets and TTLs are always
// externally supplied; there are no production defaults baked in.
type Config struct {
	Env           string        // application environment (e.g. "dev", "prod")
	Port          string        // HTTP port to listen on
	DBUser        string        // database username
	DBPass        string        // database password (optional)
	DBHost        string        // database host address
	DBPort        string        // database port number
	DBName        string        // database name
	AccessSecret  string        // secret used to sign access tokens
	RefreshSecret string        // secret used to sign refresh tokens
	AccessTTL     time.Duration // access token time-to-live
	RefreshTTL    time.Duration // refresh token time-to-live
	BcryptCost    int           // bcrypt cost for password hashing
	CacheTTL      time.Duration // TTL for profile/resource cache entries
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing or
// malformed values cause the program to exit with a fatal log message.
// TTLs use the compact duration spec "<int><s|m|h|d>" (e.g. "15m", "7d").
func Load() Config {
	return Config{
		Env:           must("APP_ENV"),
		Port:          must("APP_PORT"),
		DBUser:        must("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"), // empty allowed
		DBHost:        must("DB_HOST"),
		DBPort:        must("DB_PORT"),
		DBName:        must("DB_NAME"),
		AccessSecret:  must("ACCESS_TOKEN_SECRET"),
		RefreshSecret: must("REFRESH_TOKEN_SECRET"),
		AccessTTL:     mustExpiry("ACCESS_TOKEN_TTL"),
		RefreshTTL:    mustExpiry("REFRESH_TOKEN_TTL"),
		BcryptCost:    mustInt("BCRYPT_COST"),
		CacheTTL:      expiryOr("CACHE_TTL", 5*time.Minute),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// mustExpiry parses a required duration spec such as "15m" or "7d".
func mustExpiry(key string) time.Duration {
	s := must(key)
	d, err := utils.ParseExpiry(s)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q (want <int><s|m|h|d>)", key, s)
	}
	return d
}

// expiryOr parses an optional duration spec, falling back to a default.
func expiryOr(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := utils.ParseExpiry(s)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q (want <int><s|m|h|d>)", key, s)
	}
	return d
}

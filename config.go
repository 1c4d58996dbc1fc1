package docdb

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/g5becks/FractalDb-sub005/internal/retry"
)

// config holds a Database's resolved ambient settings. Grounded on the
// teacher's config/config.go and api/config/config.go Load()+getEnv idiom.
type config struct {
	retry     retry.Policy
	cacheSize int
	logger    *slog.Logger
}

func defaultConfig() config {
	return config{
		retry:     retry.DefaultPolicy(),
		cacheSize: 1024,
	}
}

// Option configures a Database at Open/InMemory/FromDB time.
type Option func(*config)

// WithRetryPolicy overrides the database-level default retry policy,
// applied to every collection/operation that doesn't override it itself.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *config) { c.retry = p }
}

// WithCacheSize overrides the query-translation template cache capacity
// used by every collection opened on this Database.
func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// WithLogger stores a structured logger on the Database. No operation
// writes to it: retries, statements, and schema drift are not logged.
// Grounded on the teacher's own
// slog.New(slog.NewJSONHandler(...)) ambient logging choice
// (api/database/middleware.go).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithEnv loads a .env file (if present) and overrides defaults from
// DOCDB_* environment variables, grounded on the teacher's
// godotenv.Load()-in-init()-then-getEnv(key, default) idiom
// (config/config.go, api/config/config.go).
func WithEnv() Option {
	return func(c *config) {
		_ = godotenv.Load()
		if v := getEnvInt("DOCDB_MAX_RETRY_ATTEMPTS", 0); v > 0 {
			c.retry.MaxAttempts = v
		}
		if v := getEnvDuration("DOCDB_MAX_RETRY_ELAPSED_MS", 0); v > 0 {
			c.retry.MaxElapsed = v
		}
		if v := getEnvInt("DOCDB_QUERY_CACHE_SIZE", 0); v > 0 {
			c.cacheSize = v
		}
	}
}

func getEnvInt(key string, def int) int {
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

func getEnvDuration(key string, def time.Duration) time.Duration {
	ms := getEnvInt(key, 0)
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

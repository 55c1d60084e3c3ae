package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures the processor's runtime configuration. Everything comes from
// the environment so main stays lean and deployments stay twelve-factor.
type Config struct {
	// OpsAddr is the listen address for the health/metrics endpoint.
	OpsAddr string

	// SubmissionDSN points at the submission store (PostgreSQL).
	SubmissionDSN string

	// LegacyDSN points at the legacy client registry (PostgreSQL, read-mostly).
	LegacyDSN string

	// RedisURL enables the legacy lookup cache when non-empty.
	RedisURL string

	// MatchingInterval is the fixed delay between matching poll cycles.
	MatchingInterval time.Duration

	// CompletionInterval is the fixed delay between completion poll cycles.
	CompletionInterval time.Duration

	// CompletionOffset delays the first completion cycle so it trails the
	// first matching cycle.
	CompletionOffset time.Duration

	// BatchLimit caps how many submissions one poll cycle picks up.
	BatchLimit int

	// LockTTL is how long a soft lock on a match detail row is honoured
	// before a later cycle may steal it.
	LockTTL time.Duration

	// MatcherTimeout bounds one submission's matcher fan-out.
	MatcherTimeout time.Duration

	// MaxMatchingAttempts bounds automatic retries before a submission is
	// forced to manual review.
	MaxMatchingAttempts int

	// CacheTTL enforces retention for cached legacy lookups.
	CacheTTL time.Duration

	// NotificationEndpoint is the email hand-off URL. Empty means log-only.
	NotificationEndpoint string

	// ProcessorID identifies this service in audit columns and notifications.
	ProcessorID string
}

// FromEnv builds a Config from environment variables, falling back to
// development defaults.
func FromEnv() Config {
	return Config{
		OpsAddr:              getString("PROCESSOR_OPS_ADDR", ":8080"),
		SubmissionDSN:        getString("PROCESSOR_SUBMISSION_DSN", "postgres://localhost:5432/nrfc?sslmode=disable"),
		LegacyDSN:            getString("PROCESSOR_LEGACY_DSN", "postgres://localhost:5433/legacy?sslmode=disable"),
		RedisURL:             os.Getenv("PROCESSOR_REDIS_URL"),
		MatchingInterval:     getDuration("PROCESSOR_MATCHING_INTERVAL", 30*time.Second),
		CompletionInterval:   getDuration("PROCESSOR_COMPLETION_INTERVAL", 30*time.Second),
		CompletionOffset:     getDuration("PROCESSOR_COMPLETION_OFFSET", 15*time.Second),
		BatchLimit:           getInt("PROCESSOR_BATCH_LIMIT", 50),
		LockTTL:              getDuration("PROCESSOR_LOCK_TTL", 5*time.Minute),
		MatcherTimeout:       getDuration("PROCESSOR_MATCHER_TIMEOUT", 5*time.Second),
		MaxMatchingAttempts:  getInt("PROCESSOR_MAX_MATCHING_ATTEMPTS", 5),
		CacheTTL:             getDuration("PROCESSOR_CACHE_TTL", 5*time.Minute),
		NotificationEndpoint: os.Getenv("PROCESSOR_NOTIFICATION_ENDPOINT"),
		ProcessorID:          getString("PROCESSOR_ID", "forest-client-processor"),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

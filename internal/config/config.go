package config

import (
	"time"
)

// Config is the top-level configuration container for the shellsync daemon.
// It aggregates all sub-configurations and is populated by merging values
// from environment variables, command-line flags, and an optional JSON file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type Config struct {
	// Sync holds sync-engine policy settings: scheduling interval,
	// retry budget, conflict strategy, and network eligibility policy.
	Sync Sync `envPrefix:"SYNC_"`

	// Remote holds the remote repository endpoint and transport
	// retry/backoff parameters.
	Remote Remote `envPrefix:"REMOTE_"`

	// Storage holds configuration for the local outbox database.
	Storage Storage `envPrefix:"STORAGE_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Sync holds sync-engine policy settings.
type Sync struct {
	// Interval is the period between automatic background sync passes.
	// Env: SYNC_INTERVAL
	Interval time.Duration `env:"INTERVAL"`

	// OperationDelay is the fixed pause inserted between consecutive
	// operations of one pass, as backpressure towards the server.
	// Env: SYNC_OPERATION_DELAY
	OperationDelay time.Duration `env:"OPERATION_DELAY"`

	// MaxRetries is the default retry budget assigned to enqueued
	// operations that do not specify their own.
	// Env: SYNC_MAX_RETRIES
	MaxRetries int32 `env:"MAX_RETRIES"`

	// ConflictStrategy selects the default conflict resolution policy:
	// serverWins, clientWins, lastWriteWins, or manualResolution.
	// Env: SYNC_CONFLICT_STRATEGY
	ConflictStrategy string `env:"CONFLICT_STRATEGY"`

	// WifiOnly restricts syncing to wifi and wired links when true.
	// Env: SYNC_WIFI_ONLY
	WifiOnly bool `env:"WIFI_ONLY"`

	// CompletedRetention is how long completed operations are kept in the
	// outbox before the housekeeping pass purges them.
	// Env: SYNC_COMPLETED_RETENTION
	CompletedRetention time.Duration `env:"COMPLETED_RETENTION"`

	// LeaseWindow is the execution-lease duration requested for one pass.
	// Env: SYNC_LEASE_WINDOW
	LeaseWindow time.Duration `env:"LEASE_WINDOW"`
}

// Remote holds the remote submodel repository endpoint settings.
type Remote struct {
	// BaseURL is the repository base URL (e.g. "https://repo.example.com").
	// Env: REMOTE_BASE_URL
	BaseURL string `env:"BASE_URL"`

	// RequestTimeout is the per-request timeout for outbound calls.
	// Env: REMOTE_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// RetryMaxAttempts bounds the transport-level retry loop.
	// Env: REMOTE_RETRY_MAX_ATTEMPTS
	RetryMaxAttempts int `env:"RETRY_MAX_ATTEMPTS"`

	// BackoffBase is the first retry delay of the exponential schedule.
	// Env: REMOTE_BACKOFF_BASE
	BackoffBase time.Duration `env:"BACKOFF_BASE"`

	// BackoffCap is the upper bound of the exponential schedule before
	// jitter is applied.
	// Env: REMOTE_BACKOFF_CAP
	BackoffCap time.Duration `env:"BACKOFF_CAP"`

	// Token is a static bearer token attached to authenticated requests.
	// Env: REMOTE_TOKEN
	Token string `env:"TOKEN"`
}

// Storage holds connection settings for the local outbox database.
type Storage struct {
	// DSN is the SQLite database path for the durable outbox
	// (e.g. "/var/lib/shellsync/outbox.db").
	// Env: STORAGE_DSN
	DSN string `env:"DSN"`
}

// GetConfig assembles the daemon configuration from environment variables,
// command-line flags, and an optional JSON file, merges all sources, applies
// defaults, and validates the result.
func GetConfig() (*Config, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}

package config

import "errors"

// Validation errors returned by [Config.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidRemoteConfigs indicates invalid remote repository settings
	// (for example, missing base URL or a backoff cap below the base).
	ErrInvalidRemoteConfigs = errors.New("invalid remote configuration")
	// ErrInvalidStorageConfigs indicates invalid outbox storage settings
	// (for example, an empty database path).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidSyncConfigs indicates invalid sync policy settings
	// (for example, zero sync interval or an unknown conflict strategy).
	ErrInvalidSyncConfigs = errors.New("invalid sync configuration")
)

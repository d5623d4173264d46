package config

import "github.com/pkritskov/shellsync/models"

// validate checks that the final merged [Config] satisfies all invariants
// before it is used at startup.
func (cfg *Config) validate() error {
	if cfg.Storage.DSN == "" {
		return ErrInvalidStorageConfigs
	}

	if cfg.Remote.BaseURL == "" || cfg.Remote.RequestTimeout <= 0 {
		return ErrInvalidRemoteConfigs
	}
	if cfg.Remote.RetryMaxAttempts < 0 || cfg.Remote.BackoffBase <= 0 || cfg.Remote.BackoffCap < cfg.Remote.BackoffBase {
		return ErrInvalidRemoteConfigs
	}

	if cfg.Sync.Interval <= 0 || cfg.Sync.MaxRetries < 0 {
		return ErrInvalidSyncConfigs
	}
	if _, err := models.ParseConflictStrategy(cfg.Sync.ConflictStrategy); err != nil {
		return ErrInvalidSyncConfigs
	}

	return nil
}

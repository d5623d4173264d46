package config

import "time"

// defaults returns the built-in fallback configuration. It is merged last,
// so any value supplied by env, flags, or JSON wins over it.
func defaults() *Config {
	return &Config{
		Sync: Sync{
			Interval:           5 * time.Minute,
			OperationDelay:     200 * time.Millisecond,
			MaxRetries:         3,
			ConflictStrategy:   "lastWriteWins",
			CompletedRetention: 24 * time.Hour,
			LeaseWindow:        25 * time.Second,
		},
		Remote: Remote{
			RequestTimeout:   30 * time.Second,
			RetryMaxAttempts: 3,
			BackoffBase:      time.Second,
			BackoffCap:       30 * time.Second,
		},
	}
}

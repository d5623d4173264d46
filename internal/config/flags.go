package config

import (
	"flag"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-base-url remote repository base URL
//	-token static bearer token for the remote repository
//	-d local outbox database path
//	-c/-config json file path with configs
//	-sync-interval background sync interval (e.g., "5m")
//	-operation-delay pause between operations of one pass (e.g., "200ms")
//	-max-retries per-operation retry budget
//	-strategy default conflict strategy
//	-wifi-only restrict syncing to wifi/wired links
//	-request-timeout per-request timeout (e.g., "30s")
func ParseFlags() *Config {
	var baseURL string
	var token string
	var databaseDSN string
	var jsonConfigPath string
	var syncInterval time.Duration
	var operationDelay time.Duration
	var maxRetries int
	var strategy string
	var wifiOnly bool
	var requestTimeout time.Duration

	flag.StringVar(&baseURL, "base-url", "", "Remote repository base URL")
	flag.StringVar(&token, "token", "", "Static bearer token")
	flag.StringVar(&databaseDSN, "d", "", "Local outbox database path")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Background sync interval (e.g., 5m)")
	flag.DurationVar(&operationDelay, "operation-delay", 0, "Pause between operations (e.g., 200ms)")
	flag.IntVar(&maxRetries, "max-retries", 0, "Per-operation retry budget")
	flag.StringVar(&strategy, "strategy", "", "Default conflict strategy")
	flag.BoolVar(&wifiOnly, "wifi-only", false, "Restrict syncing to wifi/wired links")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s)")

	flag.Parse()

	return &Config{
		Sync: Sync{
			Interval:         syncInterval,
			OperationDelay:   operationDelay,
			MaxRetries:       int32(maxRetries),
			ConflictStrategy: strategy,
			WifiOnly:         wifiOnly,
		},
		Remote: Remote{
			BaseURL:        baseURL,
			RequestTimeout: requestTimeout,
			Token:          token,
		},
		Storage: Storage{
			DSN: databaseDSN,
		},
		JSONFilePath: jsonConfigPath,
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type jsonConfig struct {
	Sync struct {
		Interval           Duration `json:"interval"`
		OperationDelay     Duration `json:"operation_delay"`
		MaxRetries         int32    `json:"max_retries"`
		ConflictStrategy   string   `json:"conflict_strategy"`
		WifiOnly           bool     `json:"wifi_only"`
		CompletedRetention Duration `json:"completed_retention"`
		LeaseWindow        Duration `json:"lease_window"`
	} `json:"sync,omitempty"`

	Remote struct {
		BaseURL          string   `json:"base_url"`
		RequestTimeout   Duration `json:"request_timeout"`
		RetryMaxAttempts int      `json:"retry_max_attempts"`
		BackoffBase      Duration `json:"backoff_base"`
		BackoffCap       Duration `json:"backoff_cap"`
		Token            string   `json:"token"`
	} `json:"remote,omitempty"`

	Storage struct {
		DSN string `json:"dsn"`
	} `json:"storage,omitempty"`
}

func parseJSON(jsonFilePath string) (*Config, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg jsonConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &Config{
		Sync: Sync{
			Interval:           time.Duration(jsonCfg.Sync.Interval),
			OperationDelay:     time.Duration(jsonCfg.Sync.OperationDelay),
			MaxRetries:         jsonCfg.Sync.MaxRetries,
			ConflictStrategy:   jsonCfg.Sync.ConflictStrategy,
			WifiOnly:           jsonCfg.Sync.WifiOnly,
			CompletedRetention: time.Duration(jsonCfg.Sync.CompletedRetention),
			LeaseWindow:        time.Duration(jsonCfg.Sync.LeaseWindow),
		},
		Remote: Remote{
			BaseURL:          jsonCfg.Remote.BaseURL,
			RequestTimeout:   time.Duration(jsonCfg.Remote.RequestTimeout),
			RetryMaxAttempts: jsonCfg.Remote.RetryMaxAttempts,
			BackoffBase:      time.Duration(jsonCfg.Remote.BackoffBase),
			BackoffCap:       time.Duration(jsonCfg.Remote.BackoffCap),
			Token:            jsonCfg.Remote.Token,
		},
		Storage: Storage{
			DSN: jsonCfg.Storage.DSN,
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling
// from strings like "1h", "30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

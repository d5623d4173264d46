package config

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func writeTempJSONConfig(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func validBase() *Config {
	return &Config{
		Remote:  Remote{BaseURL: "http://localhost:8081"},
		Storage: Storage{DSN: "/tmp/outbox.db"},
	}
}

// ── newConfigBuilder ──────────────────────────────────────────────────────────

// TestNewConfigBuilder_InitialState verifies that a freshly created builder
// has no error and an empty configs slice.
func TestNewConfigBuilder_InitialState(t *testing.T) {
	b := newConfigBuilder()
	require.NotNil(t, b)
	assert.NoError(t, b.err)
	assert.Empty(t, b.configs)
}

// ── build ─────────────────────────────────────────────────────────────────────

// TestBuild_PropagatesBuilderError verifies that a pre-set b.err is wrapped
// and returned, with nil config.
func TestBuild_PropagatesBuilderError(t *testing.T) {
	b := newConfigBuilder()
	b.err = assert.AnError

	cfg, err := b.build()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

// TestBuild_MergesMultipleConfigs verifies that fields from multiple configs
// are merged into a single result, earlier configs winning.
func TestBuild_MergesMultipleConfigs(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs,
		validBase(),
		&Config{Sync: Sync{MaxRetries: 7}},
	)
	b.withDefaults()

	cfg, err := b.build()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8081", cfg.Remote.BaseURL)
	assert.Equal(t, int32(7), cfg.Sync.MaxRetries)
	// defaults fill what no source set
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, "lastWriteWins", cfg.Sync.ConflictStrategy)
}

// TestBuild_EarlierSourceWins verifies the documented source priority: a
// value set by an earlier source is not overridden by a later one.
func TestBuild_EarlierSourceWins(t *testing.T) {
	b := newConfigBuilder()
	first := validBase()
	first.Sync.ConflictStrategy = "serverWins"
	b.configs = append(b.configs,
		first,
		&Config{Sync: Sync{ConflictStrategy: "clientWins"}},
	)
	b.withDefaults()

	cfg, err := b.build()
	require.NoError(t, err)
	assert.Equal(t, "serverWins", cfg.Sync.ConflictStrategy)
}

// ── withJSON ──────────────────────────────────────────────────────────────────

// TestWithJSON_LoadsFileWhenPathSet verifies that a JSON file referenced by
// an earlier source is parsed and appended to the merge chain.
func TestWithJSON_LoadsFileWhenPathSet(t *testing.T) {
	path := writeTempJSONConfig(t, map[string]any{
		"remote":  map[string]any{"base_url": "http://json-host:9000", "request_timeout": "45s"},
		"storage": map[string]any{"dsn": "/tmp/json-outbox.db"},
	})

	b := newConfigBuilder()
	b.configs = append(b.configs, &Config{JSONFilePath: path})
	b.withJSON().withDefaults()

	cfg, err := b.build()
	require.NoError(t, err)
	assert.Equal(t, "http://json-host:9000", cfg.Remote.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Remote.RequestTimeout)
	assert.Equal(t, "/tmp/json-outbox.db", cfg.Storage.DSN)
}

// TestWithJSON_MissingFileSetsError verifies that a dangling config path
// surfaces as a build error instead of being ignored.
func TestWithJSON_MissingFileSetsError(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &Config{JSONFilePath: "/does/not/exist.json"})
	b.withJSON()

	cfg, err := b.build()
	assert.Nil(t, cfg)
	require.Error(t, err)
}

// ── validate ──────────────────────────────────────────────────────────────────

func TestValidate_RejectsMissingStorage(t *testing.T) {
	b := newConfigBuilder()
	cfg := validBase()
	cfg.Storage.DSN = ""
	b.configs = append(b.configs, cfg)
	b.withDefaults()

	_, err := b.build()
	assert.ErrorIs(t, err, ErrInvalidStorageConfigs)
}

func TestValidate_RejectsMissingBaseURL(t *testing.T) {
	b := newConfigBuilder()
	cfg := validBase()
	cfg.Remote.BaseURL = ""
	b.configs = append(b.configs, cfg)
	b.withDefaults()

	_, err := b.build()
	assert.ErrorIs(t, err, ErrInvalidRemoteConfigs)
}

func TestValidate_RejectsUnknownStrategy(t *testing.T) {
	b := newConfigBuilder()
	cfg := validBase()
	cfg.Sync.ConflictStrategy = "oldestWins"
	b.configs = append(b.configs, cfg)
	b.withDefaults()

	_, err := b.build()
	assert.ErrorIs(t, err, ErrInvalidSyncConfigs)
}

func TestValidate_RejectsCapBelowBase(t *testing.T) {
	b := newConfigBuilder()
	cfg := validBase()
	cfg.Remote.BackoffBase = 10 * time.Second
	cfg.Remote.BackoffCap = time.Second
	b.configs = append(b.configs, cfg)
	b.withDefaults()

	_, err := b.build()
	assert.ErrorIs(t, err, ErrInvalidRemoteConfigs)
}

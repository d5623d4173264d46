package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkritskov/shellsync/models"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		local    string
		server   string
		conflict bool
	}{
		{
			name:     "identical payloads",
			local:    `{"id":"p-1","status":"running"}`,
			server:   `{"id":"p-1","status":"running"}`,
			conflict: false,
		},
		{
			name:     "same fields different key order",
			local:    `{"status":"running","id":"p-1"}`,
			server:   `{"id":"p-1","status":"running"}`,
			conflict: false,
		},
		{
			name:     "differing field value",
			local:    `{"id":"p-1","status":"running"}`,
			server:   `{"id":"p-1","status":"stopped"}`,
			conflict: true,
		},
		{
			name:     "extra server field is still a conflict",
			local:    `{"id":"p-1"}`,
			server:   `{"id":"p-1","status":"running"}`,
			conflict: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflict, err := Detect([]byte(tt.local), []byte(tt.server))
			require.NoError(t, err)
			assert.Equal(t, tt.conflict, conflict)
		})
	}
}

func TestDetect_MalformedPayload(t *testing.T) {
	_, err := Detect([]byte(`{"id":`), []byte(`{}`))
	require.Error(t, err)

	_, err = Detect([]byte(`{}`), []byte(`not json`))
	require.Error(t, err)
}

func TestResolve_FixedStrategies(t *testing.T) {
	local := []byte(`{"v":"local"}`)
	server := []byte(`{"v":"server"}`)

	res, err := Resolve(local, server, nil, nil, models.StrategyServerWins)
	require.NoError(t, err)
	assert.Equal(t, models.UseServer(server), res)

	res, err = Resolve(local, server, nil, nil, models.StrategyClientWins)
	require.NoError(t, err)
	assert.Equal(t, models.UseClient(local), res)

	res, err = Resolve(local, server, nil, nil, models.StrategyManual)
	require.NoError(t, err)
	assert.Equal(t, models.RequiresManualResolution(local, server), res)
	assert.False(t, res.Automatic())
}

func TestResolve_LastWriteWins(t *testing.T) {
	local := []byte(`{"v":"A"}`)
	server := []byte(`{"v":"B"}`)
	ts := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	later := ts.Add(time.Second)

	tests := []struct {
		name     string
		localTS  *time.Time
		serverTS *time.Time
		want     models.Resolution
	}{
		{"local strictly later", &later, &ts, models.UseClient(local)},
		{"server strictly later", &ts, &later, models.UseServer(server)},
		{"equal timestamps fall to server", &ts, &ts, models.UseServer(server)},
		{"only server timestamp", nil, &ts, models.UseServer(server)},
		{"only local timestamp", &ts, nil, models.UseClient(local)},
		{"no timestamps at all", nil, nil, models.UseServer(server)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(local, server, tt.localTS, tt.serverTS, models.StrategyLastWriteWins)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
		})
	}
}

func TestResolve_UnknownStrategy(t *testing.T) {
	_, err := Resolve(nil, nil, nil, nil, models.ConflictStrategy("coin-flip"))
	require.Error(t, err)
}

// Resolve must stay pure: the same inputs always produce the same output.
func TestResolve_Deterministic(t *testing.T) {
	local := []byte(`{"v":"A"}`)
	server := []byte(`{"v":"B"}`)
	ts := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	first, err := Resolve(local, server, &ts, &ts, models.StrategyLastWriteWins)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := Resolve(local, server, &ts, &ts, models.StrategyLastWriteWins)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

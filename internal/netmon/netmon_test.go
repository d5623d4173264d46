package netmon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkritskov/shellsync/internal/logger"
	"github.com/pkritskov/shellsync/models"
)

func wifiStatus() models.NetworkStatus {
	return models.NetworkStatus{Connected: true, Class: models.ConnectionWifi}
}

func cellularStatus() models.NetworkStatus {
	return models.NetworkStatus{Connected: true, Class: models.ConnectionCellular, Expensive: true}
}

func TestMonitor_StartsUnreachable(t *testing.T) {
	m := NewMonitor(Policy{}, logger.Nop())

	assert.False(t, m.Status().Connected)
	assert.False(t, m.ShouldAllowSync())
}

func TestShouldAllowSync_Policy(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		status models.NetworkStatus
		want   bool
	}{
		{name: "wifi allowed under strict policy", policy: Policy{}, status: wifiStatus(), want: true},
		{name: "wired allowed under strict policy", policy: Policy{}, status: models.NetworkStatus{Connected: true, Class: models.ConnectionWired}, want: true},
		{name: "cellular blocked under strict policy", policy: Policy{}, status: cellularStatus(), want: false},
		{name: "cellular allowed when expensive permitted", policy: Policy{AllowExpensiveNetworks: true}, status: cellularStatus(), want: true},
		{name: "disconnected never allowed", policy: Policy{AllowExpensiveNetworks: true}, status: models.Unreachable(), want: false},
		{name: "unknown class blocked under strict policy", policy: Policy{}, status: models.NetworkStatus{Connected: true, Class: models.ConnectionUnknown}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(tt.policy, logger.Nop())
			m.Update(tt.status)
			assert.Equal(t, tt.want, m.ShouldAllowSync())
		})
	}
}

func TestSubscribe_ReceivesChanges(t *testing.T) {
	m := NewMonitor(Policy{}, logger.Nop())
	updates, cancel := m.Subscribe()
	defer cancel()

	m.Update(wifiStatus())

	select {
	case got := <-updates:
		assert.Equal(t, wifiStatus(), got)
	case <-time.After(time.Second):
		t.Fatal("no status change delivered")
	}
}

func TestUpdate_IgnoresIdenticalSnapshot(t *testing.T) {
	m := NewMonitor(Policy{}, logger.Nop())
	updates, cancel := m.Subscribe()
	defer cancel()

	m.Update(wifiStatus())
	m.Update(wifiStatus()) // duplicate must not produce a second event

	<-updates
	select {
	case <-updates:
		t.Fatal("duplicate snapshot delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUpdate_SlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewMonitor(Policy{}, logger.Nop())
	_, cancel := m.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2*subscriberBuffer; i++ {
			status := wifiStatus()
			status.Constrained = i%2 == 0
			m.Update(status)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher stalled on a slow subscriber")
	}
}

func TestAwaitConnectivity_ImmediateWhenEligible(t *testing.T) {
	m := NewMonitor(Policy{}, logger.Nop())
	m.Update(wifiStatus())

	assert.True(t, m.AwaitConnectivity(context.Background(), 10*time.Millisecond))
}

func TestAwaitConnectivity_WakesOnReconnect(t *testing.T) {
	m := NewMonitor(Policy{}, logger.Nop())

	go func() {
		time.Sleep(20 * time.Millisecond)
		m.Update(wifiStatus())
	}()

	require.True(t, m.AwaitConnectivity(context.Background(), time.Second))
}

func TestAwaitConnectivity_TimesOut(t *testing.T) {
	m := NewMonitor(Policy{}, logger.Nop())

	assert.False(t, m.AwaitConnectivity(context.Background(), 30*time.Millisecond))
}

func TestAwaitConnectivity_IneligibleChangeKeepsWaiting(t *testing.T) {
	m := NewMonitor(Policy{}, logger.Nop())

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.Update(cellularStatus()) // connected but blocked by policy
	}()

	assert.False(t, m.AwaitConnectivity(context.Background(), 60*time.Millisecond))
}

func TestAwaitConnectivity_ContextCancellation(t *testing.T) {
	m := NewMonitor(Policy{}, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	assert.False(t, m.AwaitConnectivity(ctx, time.Second))
}

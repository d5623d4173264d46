// Package netmon observes device connectivity and answers sync-eligibility
// queries.
//
// The monitor is a passive component: platform integrations push
// [models.NetworkStatus] snapshots into it via Update, and consumers either
// poll Status / ShouldAllowSync or subscribe to change events. The monitor
// never triggers a sync itself.
package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/pkritskov/shellsync/internal/logger"
	"github.com/pkritskov/shellsync/models"
)

// Policy controls which links are eligible for syncing.
type Policy struct {
	// AllowExpensiveNetworks permits syncing over cellular and other
	// metered links. When false, only wifi and wired links qualify.
	AllowExpensiveNetworks bool
}

// Monitor exposes the current connectivity snapshot and a stream of status
// changes. All methods are safe for concurrent use.
type Monitor interface {
	// Status returns the most recently observed connectivity snapshot.
	Status() models.NetworkStatus

	// Update replaces the current snapshot and notifies subscribers when
	// the snapshot actually changed. Called by platform integrations.
	Update(status models.NetworkStatus)

	// Subscribe registers a change listener. The returned channel receives
	// every status change until the cancel function is called. Delivery is
	// best-effort: a slow subscriber loses intermediate snapshots instead
	// of stalling the publisher.
	Subscribe() (<-chan models.NetworkStatus, func())

	// ShouldAllowSync reports whether a sync pass may start under the
	// configured policy: connected AND (expensive networks allowed OR the
	// link is wifi/wired).
	ShouldAllowSync() bool

	// AwaitConnectivity blocks until ShouldAllowSync becomes true or the
	// timeout/ctx expires. Returns true when connectivity was reached.
	AwaitConnectivity(ctx context.Context, timeout time.Duration) bool
}

const subscriberBuffer = 8

type monitor struct {
	policy Policy
	logger *logger.Logger

	mu      sync.RWMutex
	status  models.NetworkStatus
	subs    map[int]chan models.NetworkStatus
	nextSub int
}

// NewMonitor constructs a Monitor that starts in the unreachable state.
func NewMonitor(policy Policy, log *logger.Logger) Monitor {
	return &monitor{
		policy: policy,
		logger: log,
		status: models.Unreachable(),
		subs:   make(map[int]chan models.NetworkStatus),
	}
}

func (m *monitor) Status() models.NetworkStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *monitor) Update(status models.NetworkStatus) {
	m.mu.Lock()
	if m.status == status {
		m.mu.Unlock()
		return
	}
	m.status = status
	subs := make([]chan models.NetworkStatus, 0, len(m.subs))
	for _, ch := range m.subs {
		subs = append(subs, ch)
	}
	m.mu.Unlock()

	m.logger.Debug().
		Bool("connected", status.Connected).
		Str("class", string(status.Class)).
		Bool("expensive", status.Expensive).
		Msg("network status changed")

	for _, ch := range subs {
		select {
		case ch <- status:
		default:
			// subscriber is behind; it will catch up on the next change
		}
	}
}

func (m *monitor) Subscribe() (<-chan models.NetworkStatus, func()) {
	ch := make(chan models.NetworkStatus, subscriberBuffer)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}

	return ch, cancel
}

func (m *monitor) ShouldAllowSync() bool {
	return m.allows(m.Status())
}

func (m *monitor) allows(status models.NetworkStatus) bool {
	if !status.Connected {
		return false
	}
	if m.policy.AllowExpensiveNetworks {
		return true
	}
	return status.Class == models.ConnectionWifi || status.Class == models.ConnectionWired
}

func (m *monitor) AwaitConnectivity(ctx context.Context, timeout time.Duration) bool {
	if m.ShouldAllowSync() {
		return true
	}

	updates, cancel := m.Subscribe()
	defer cancel()

	// re-check after subscribing so an update between the first check and
	// Subscribe is not missed
	if m.ShouldAllowSync() {
		return true
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case status := <-updates:
			if m.allows(status) {
				return true
			}
		case <-deadline:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// Package lease abstracts the host's execution window. On mobile-like hosts
// the OS grants a bounded slice of background runtime; a sync pass acquires a
// lease up front so it can try to finish the batch even after the foreground
// context is suspended, and gets a callback shortly before the window is
// revoked.
package lease

import (
	"context"
	"sync"
	"time"

	"github.com/pkritskov/shellsync/internal/logger"
)

// Handle is one granted execution window.
type Handle interface {
	// OnExpiring registers a callback invoked once, shortly before the
	// window is revoked. Registering after expiry invokes the callback
	// immediately.
	OnExpiring(func())
	// End releases the window. Safe to call more than once.
	End()
}

// Provider grants execution windows.
type Provider interface {
	Begin(ctx context.Context) (Handle, error)
}

//go:generate mockgen -source=lease.go -destination=../mock/lease_mock.go -package=mock

// TimerProvider grants fixed-duration windows backed by a timer. It stands in
// for a platform lease API: the expiry callback fires when the window runs
// out, leaving a small margin for the caller to wind down.
type TimerProvider struct {
	window time.Duration
	logger *logger.Logger
}

func NewTimerProvider(window time.Duration, log *logger.Logger) *TimerProvider {
	return &TimerProvider{window: window, logger: log}
}

func (p *TimerProvider) Begin(_ context.Context) (Handle, error) {
	h := &timerHandle{logger: p.logger}
	h.timer = time.AfterFunc(p.window, h.expire)
	p.logger.Debug().Dur("window", p.window).Msg("execution lease acquired")
	return h, nil
}

type timerHandle struct {
	timer  *time.Timer
	logger *logger.Logger

	mu       sync.Mutex
	expired  bool
	ended    bool
	callback func()
}

func (h *timerHandle) OnExpiring(fn func()) {
	h.mu.Lock()
	expired := h.expired
	if !expired {
		h.callback = fn
	}
	h.mu.Unlock()

	if expired {
		fn()
	}
}

func (h *timerHandle) End() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended {
		return
	}
	h.ended = true
	h.timer.Stop()
	h.logger.Debug().Msg("execution lease released")
}

func (h *timerHandle) expire() {
	h.mu.Lock()
	if h.ended {
		h.mu.Unlock()
		return
	}
	h.expired = true
	fn := h.callback
	h.callback = nil
	h.mu.Unlock()

	h.logger.Debug().Msg("execution lease expiring")
	if fn != nil {
		fn()
	}
}

// NopProvider grants windows that never expire. Used on hosts without
// background execution limits and in tests.
type NopProvider struct{}

func (NopProvider) Begin(context.Context) (Handle, error) { return nopHandle{}, nil }

type nopHandle struct{}

func (nopHandle) OnExpiring(func()) {}
func (nopHandle) End()              {}

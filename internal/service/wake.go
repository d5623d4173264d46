package service

import (
	"context"
	"sync"

	"github.com/pkritskov/shellsync/internal/logger"
)

// WakeRegistry lets host wake callbacks (a scheduled background task firing
// after the process was suspended) reach the current engine without a
// process-wide global. The composition root registers the engine once; the
// platform glue calls Wake from its callback.
type WakeRegistry struct {
	mu     sync.RWMutex
	engine Syncer
	logger *logger.Logger
}

func NewWakeRegistry(log *logger.Logger) *WakeRegistry {
	return &WakeRegistry{logger: log}
}

// Register installs the engine the next Wake call is routed to. Passing nil
// unregisters.
func (r *WakeRegistry) Register(engine Syncer) {
	r.mu.Lock()
	r.engine = engine
	r.mu.Unlock()
}

// Wake runs one sync pass on the registered engine. Returns false when no
// engine is registered or the pass did not run.
func (r *WakeRegistry) Wake(ctx context.Context) bool {
	r.mu.RLock()
	engine := r.engine
	r.mu.RUnlock()

	if engine == nil {
		r.logger.Debug().Msg("wake callback fired with no registered engine")
		return false
	}

	if _, err := engine.Sync(ctx); err != nil {
		r.logger.Debug().Err(err).Msg("wake-triggered sync did not run")
		return false
	}
	return true
}

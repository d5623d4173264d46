// Package audit emits the per-operation trail of a sync pass for external
// consumers such as the device activity log.
package audit

import (
	"time"

	"github.com/pkritskov/shellsync/internal/logger"
	"github.com/pkritskov/shellsync/models"
)

// ActionKind labels what happened to an operation during a pass.
type ActionKind string

const (
	ActionSynced       ActionKind = "synced"
	ActionFailed       ActionKind = "failed"
	ActionSkipped      ActionKind = "skipped"
	ActionConflict     ActionKind = "conflict"
	ActionPassFinished ActionKind = "passFinished"
)

// Event is one audit record. Events are immutable once recorded.
type Event struct {
	Action      ActionKind
	EntityType  string
	EntityID    string
	ContainerID string
	StatusText  string
	ErrorText   string
	Timestamp   time.Time
}

// Sink receives audit events. Record must not block the sync pass.
type Sink interface {
	Record(event Event)
	Conflict(info models.ConflictInfo)
}

//go:generate mockgen -source=audit.go -destination=../mock/audit_mock.go -package=mock

// logSink writes audit events into the structured log.
type logSink struct {
	logger *logger.Logger
}

func NewLogSink(log *logger.Logger) Sink {
	return &logSink{logger: log}
}

func (s *logSink) Record(event Event) {
	evt := s.logger.Info()
	if event.Action == ActionFailed {
		evt = s.logger.Warn()
	}
	evt.
		Str("action", string(event.Action)).
		Str("entity_type", event.EntityType).
		Str("entity_id", event.EntityID).
		Str("container_id", event.ContainerID).
		Str("status", event.StatusText)
	if event.ErrorText != "" {
		evt = evt.Str("error", event.ErrorText)
	}
	evt.Time("at", event.Timestamp).Msg("sync audit event")
}

func (s *logSink) Conflict(info models.ConflictInfo) {
	s.logger.Warn().
		Str("operation_id", info.OperationID).
		Str("entity_type", info.EntityType).
		Str("entity_id", info.EntityID).
		Str("container_id", info.ContainerID).
		Str("strategy", string(info.Strategy)).
		Str("resolution", string(info.Resolution)).
		Time("detected_at", info.DetectedAt).
		Msg("sync conflict detected")
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Record(Event)                  {}
func (NopSink) Conflict(models.ConflictInfo) {}

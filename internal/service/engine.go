// Package service contains the sync orchestrator: the state machine that
// drains the outbox against the remote repository, resolving conflicts and
// reporting per-pass results.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pkritskov/shellsync/internal/adapter"
	"github.com/pkritskov/shellsync/internal/audit"
	"github.com/pkritskov/shellsync/internal/config"
	"github.com/pkritskov/shellsync/internal/lease"
	"github.com/pkritskov/shellsync/internal/logger"
	"github.com/pkritskov/shellsync/internal/netmon"
	"github.com/pkritskov/shellsync/internal/resolver"
	"github.com/pkritskov/shellsync/internal/store"
	"github.com/pkritskov/shellsync/models"
)

// entityTypeMaintenance is the one entity kind with a best-effort field
// merge; conflicts on every other kind go straight to the configured
// strategy.
const entityTypeMaintenance = "maintenance"

// SyncEngine drains the outbox one operation at a time. At most one pass is
// active per engine; a pass may end in success, partial failure, or
// cancellation.
type SyncEngine struct {
	outbox   store.OutboxStore
	remote   adapter.RemoteRepository
	monitor  netmon.Monitor
	leases   lease.Provider
	audit    audit.Sink
	strategy models.ConflictStrategy
	cfg      config.Sync
	logger   *logger.Logger

	progress *progressHub

	mu          sync.Mutex
	state       models.SyncState
	cancelCh    chan struct{}
	cancelCause error

	now func() time.Time
}

// NewSyncEngine wires the orchestrator. The conflict strategy is taken from
// cfg and validated once here; every collaborator is required.
func NewSyncEngine(
	cfg config.Sync,
	outbox store.OutboxStore,
	remote adapter.RemoteRepository,
	monitor netmon.Monitor,
	leases lease.Provider,
	sink audit.Sink,
	log *logger.Logger,
) (*SyncEngine, error) {
	strategy, err := models.ParseConflictStrategy(cfg.ConflictStrategy)
	if err != nil {
		return nil, fmt.Errorf("sync engine config: %w", err)
	}
	if leases == nil {
		leases = lease.NopProvider{}
	}
	if sink == nil {
		sink = audit.NopSink{}
	}

	return &SyncEngine{
		outbox:   outbox,
		remote:   remote,
		monitor:  monitor,
		leases:   leases,
		audit:    sink,
		strategy: strategy,
		cfg:      cfg,
		logger:   log,
		progress: newProgressHub(),
		state:    models.SyncIdle,
		now:      time.Now,
	}, nil
}

// Enqueue records a new mutation in the outbox, applying the configured
// retry budget. Safe to call at any time, including while a pass is
// draining.
func (e *SyncEngine) Enqueue(ctx context.Context, opType models.OperationType, entityType, entityID, containerID string, payload []byte, priority int32) error {
	op := &models.Operation{
		Type:        opType,
		EntityType:  entityType,
		EntityID:    entityID,
		ContainerID: containerID,
		Payload:     payload,
		Priority:    priority,
		MaxRetries:  e.cfg.MaxRetries,
	}
	if err := e.outbox.Enqueue(ctx, op); err != nil {
		return fmt.Errorf("enqueue %s %s: %w", opType, entityID, err)
	}
	e.logger.Debug().Str("operation_id", op.ID).Str("entity_id", entityID).Msg("operation enqueued")
	return nil
}

// Stats exposes the outbox counters for UI consumers.
func (e *SyncEngine) Stats(ctx context.Context) (models.OutboxStats, error) {
	return e.outbox.Stats(ctx)
}

// State returns the engine's current lifecycle state.
func (e *SyncEngine) State() models.SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Progress subscribes to progress snapshots. The returned function
// unsubscribes.
func (e *SyncEngine) Progress() (<-chan models.SyncProgress, func()) {
	return e.progress.Subscribe()
}

// Cancel requests cooperative cancellation of the running pass. The
// cancellation only prevents starting the next operation: one already on the
// wire runs to completion or its own timeout. All remaining operations in
// the snapshot are counted as skipped. No-op when idle.
func (e *SyncEngine) Cancel() {
	e.cancelWithCause(ErrCancelled)
}

func (e *SyncEngine) cancelWithCause(cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != models.SyncRunning {
		return
	}
	e.state = models.SyncCancelling
	e.cancelCause = cause
	close(e.cancelCh)
	e.logger.Info().Msg("sync cancellation requested")
}

// Sync runs one full pass over the pending snapshot. Guards: refuses to
// start while a pass is running, while the network policy forbids syncing,
// and when the outbox is empty.
func (e *SyncEngine) Sync(ctx context.Context) (models.SyncResult, error) {
	if e.State() != models.SyncIdle {
		return models.SyncResult{}, ErrSyncInProgress
	}
	if !e.monitor.ShouldAllowSync() {
		return models.SyncResult{}, ErrSyncNotAllowed
	}

	ops, err := e.outbox.ListPending(ctx)
	if err != nil {
		return models.SyncResult{}, fmt.Errorf("list pending operations: %w", err)
	}
	if len(ops) == 0 {
		return models.SyncResult{}, ErrNothingToSync
	}

	if err = e.begin(); err != nil {
		return models.SyncResult{}, err
	}

	handle, err := e.leases.Begin(ctx)
	if err != nil {
		e.finish(models.SyncResult{}, 0)
		return models.SyncResult{}, fmt.Errorf("acquire execution lease: %w", err)
	}
	handle.OnExpiring(func() {
		e.logger.Warn().Msg("execution lease expiring, cancelling pass")
		e.cancelWithCause(ErrLeaseExpired)
	})
	defer handle.End()

	result := e.drain(ctx, ops)
	e.purgeCompleted(ctx)
	e.finish(result, len(ops))

	e.audit.Record(audit.Event{
		Action:     audit.ActionPassFinished,
		StatusText: fmt.Sprintf("success=%d failed=%d skipped=%d", result.SuccessCount, result.FailureCount, result.SkippedCount),
		Timestamp:  e.now(),
	})
	e.logger.Info().
		Int("success", result.SuccessCount).
		Int("failed", result.FailureCount).
		Int("skipped", result.SkippedCount).
		Msg("sync pass finished")

	return result, nil
}

// begin performs the idle→syncing transition under the single-flight guard.
func (e *SyncEngine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != models.SyncIdle {
		return ErrSyncInProgress
	}
	e.state = models.SyncRunning
	e.cancelCh = make(chan struct{})
	e.cancelCause = nil
	return nil
}

func (e *SyncEngine) finish(result models.SyncResult, total int) {
	e.mu.Lock()
	e.state = models.SyncIdle
	e.cancelCh = nil
	e.mu.Unlock()

	e.progress.Publish(models.SyncProgress{
		State:      models.SyncIdle,
		Processed:  result.Processed(),
		Total:      total,
		StatusText: "sync finished",
	})
}

func (e *SyncEngine) isCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelCh == nil {
		return false
	}
	select {
	case <-e.cancelCh:
		return true
	default:
		return false
	}
}

func (e *SyncEngine) cancelSignal() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelCh
}

// cancelReason reports why the pass is being cut short: the explicit cause
// recorded at cancellation time, or plain cancellation for a dying context.
func (e *SyncEngine) cancelReason() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelCause != nil {
		return e.cancelCause
	}
	return ErrCancelled
}

// drain processes the snapshot sequentially. Per-entity operations must
// apply in creation order, so there is exactly one in-flight operation at a
// time; the inter-operation delay adds backpressure on the remote server.
func (e *SyncEngine) drain(ctx context.Context, ops []models.Operation) models.SyncResult {
	var result models.SyncResult
	total := len(ops)

	e.progress.Publish(models.SyncProgress{
		State:      models.SyncRunning,
		Total:      total,
		StatusText: "sync started",
	})

	for i, op := range ops {
		if e.isCancelled() || ctx.Err() != nil {
			remaining := total - i
			result.SkippedCount += remaining
			result.Errors = append(result.Errors, fmt.Errorf("%d operations skipped: %w", remaining, e.cancelReason()))
			e.recordSkippedRemainder(ops[i:])
			break
		}

		result = result.Merge(e.processOperation(ctx, op))

		e.progress.Publish(models.SyncProgress{
			State:      models.SyncRunning,
			Processed:  i + 1,
			Total:      total,
			StatusText: fmt.Sprintf("synced %s %s", op.EntityType, op.EntityID),
		})

		if i < total-1 && e.cfg.OperationDelay > 0 {
			select {
			case <-ctx.Done():
			case <-e.cancelSignal():
			case <-time.After(e.cfg.OperationDelay):
			}
		}
	}

	return result
}

func (e *SyncEngine) recordSkippedRemainder(ops []models.Operation) {
	for _, op := range ops {
		e.audit.Record(audit.Event{
			Action:      audit.ActionSkipped,
			EntityType:  op.EntityType,
			EntityID:    op.EntityID,
			ContainerID: op.ContainerID,
			StatusText:  "cancelled before attempt",
			Timestamp:   e.now(),
		})
	}
}

// processOperation runs a single outbox operation end to end and folds its
// outcome into a one-operation result.
func (e *SyncEngine) processOperation(ctx context.Context, op models.Operation) models.SyncResult {
	log := e.logger.With().
		Str("operation_id", op.ID).
		Str("operation_type", string(op.Type)).
		Str("entity_id", op.EntityID).
		Logger()

	if err := e.outbox.MarkInProgress(ctx, op.ID); err != nil {
		log.Err(err).Msg("failed to mark operation in progress")
		return models.SyncResult{FailureCount: 1, Errors: []error{err}}
	}

	err := e.dispatch(ctx, op)

	switch {
	case err == nil:
		if markErr := e.outbox.MarkCompleted(ctx, op.ID); markErr != nil {
			// proceed; the next cycle re-delivers and the server side is
			// idempotent enough to tolerate it
			log.Err(markErr).Msg("completed remotely but local status write failed")
		}
		e.audit.Record(audit.Event{
			Action:      audit.ActionSynced,
			EntityType:  op.EntityType,
			EntityID:    op.EntityID,
			ContainerID: op.ContainerID,
			StatusText:  "synced",
			Timestamp:   e.now(),
		})
		return models.SyncResult{SuccessCount: 1}

	case errors.Is(err, ErrPayloadDecode), errors.Is(err, ErrManualResolutionRequired):
		if markErr := e.outbox.MarkRequiresAction(ctx, op.ID, err.Error()); markErr != nil {
			log.Err(markErr).Msg("failed to park operation for user action")
		}
		e.audit.Record(audit.Event{
			Action:      audit.ActionSkipped,
			EntityType:  op.EntityType,
			EntityID:    op.EntityID,
			ContainerID: op.ContainerID,
			StatusText:  "requires user action",
			ErrorText:   err.Error(),
			Timestamp:   e.now(),
		})
		return models.SyncResult{SkippedCount: 1, Errors: []error{err}}

	default:
		if markErr := e.outbox.MarkFailed(ctx, op.ID, err.Error()); markErr != nil {
			log.Err(markErr).Msg("failed to record operation failure")
		}
		if op.AttemptCount+1 >= op.MaxRetries {
			exhausted := fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
			e.audit.Record(audit.Event{
				Action:      audit.ActionSkipped,
				EntityType:  op.EntityType,
				EntityID:    op.EntityID,
				ContainerID: op.ContainerID,
				StatusText:  "retries exhausted, requires user action",
				ErrorText:   err.Error(),
				Timestamp:   e.now(),
			})
			return models.SyncResult{SkippedCount: 1, Errors: []error{exhausted}}
		}
		log.Warn().Err(err).Msg("operation failed, will retry next cycle")
		e.audit.Record(audit.Event{
			Action:      audit.ActionFailed,
			EntityType:  op.EntityType,
			EntityID:    op.EntityID,
			ContainerID: op.ContainerID,
			StatusText:  "failed",
			ErrorText:   err.Error(),
			Timestamp:   e.now(),
		})
		return models.SyncResult{FailureCount: 1, Errors: []error{err}}
	}
}

// dispatch applies one operation against the remote repository.
func (e *SyncEngine) dispatch(ctx context.Context, op models.Operation) error {
	switch op.Type {
	case models.OperationCreate:
		return e.dispatchCreate(ctx, op)
	case models.OperationUpdate:
		return e.dispatchUpdate(ctx, op)
	case models.OperationDelete:
		return e.dispatchDelete(ctx, op)
	default:
		return fmt.Errorf("%w: unknown operation type %q", ErrPayloadDecode, op.Type)
	}
}

func (e *SyncEngine) dispatchCreate(ctx context.Context, op models.Operation) error {
	if _, err := models.DecodeValue(op.Payload); err != nil {
		return fmt.Errorf("%w: %w", ErrPayloadDecode, err)
	}
	if _, err := e.remote.Create(ctx, op.ContainerID, op.Payload); err != nil {
		return fmt.Errorf("create %s: %w", op.EntityID, err)
	}
	return nil
}

// dispatchUpdate fetches current server state for the conflict check and
// applies the resolution. A missing server entity means the preceding create
// never landed, so the update is re-dispatched as a create.
func (e *SyncEngine) dispatchUpdate(ctx context.Context, op models.Operation) error {
	if _, err := models.DecodeValue(op.Payload); err != nil {
		return fmt.Errorf("%w: %w", ErrPayloadDecode, err)
	}

	fetched, err := e.remote.Fetch(ctx, op.ContainerID, op.EntityID)
	if err != nil {
		if errors.Is(err, adapter.ErrNotFound) {
			e.logger.Debug().Str("entity_id", op.EntityID).Msg("entity missing on server, re-dispatching update as create")
			return e.dispatchCreate(ctx, op)
		}
		return fmt.Errorf("fetch %s for conflict check: %w", op.EntityID, err)
	}

	conflict, err := resolver.Detect(op.Payload, fetched.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPayloadDecode, err)
	}
	if !conflict {
		// server already holds this exact state
		return nil
	}

	resolution, err := e.resolveConflict(op, fetched)
	if err != nil {
		return err
	}

	e.audit.Conflict(models.ConflictInfo{
		OperationID:     op.ID,
		EntityType:      op.EntityType,
		EntityID:        op.EntityID,
		ContainerID:     op.ContainerID,
		LocalPayload:    op.Payload,
		ServerPayload:   fetched.Body,
		LocalTimestamp:  &op.CreatedAt,
		ServerTimestamp: fetched.ModifiedAt,
		Strategy:        e.strategy,
		Resolution:      resolution.Kind,
		DetectedAt:      e.now(),
	})

	switch resolution.Kind {
	case models.ResolutionUseServer:
		// discard the local change
		return nil
	case models.ResolutionUseClient, models.ResolutionMerged:
		if err = e.remote.Update(ctx, op.ContainerID, op.EntityID, resolution.Data); err != nil {
			return fmt.Errorf("update %s: %w", op.EntityID, err)
		}
		return nil
	default:
		return fmt.Errorf("entity %s: %w", op.EntityID, ErrManualResolutionRequired)
	}
}

// resolveConflict picks the winning payload. Maintenance records get the
// best-effort field merge first; when that cannot apply, and for every other
// entity kind, the configured strategy decides.
func (e *SyncEngine) resolveConflict(op models.Operation, fetched adapter.FetchResult) (models.Resolution, error) {
	if op.EntityType == entityTypeMaintenance && e.strategy != models.StrategyManual {
		if merged, ok := e.tryMergeMaintenance(op.Payload, fetched.Body); ok {
			return models.Merged(merged), nil
		}
	}

	// The local timestamp (enqueue time) is only comparable when the server
	// reported one too; without a server counterpart the server stays the
	// default authority, so resolve as if both sides were missing.
	var localTS *time.Time
	if fetched.ModifiedAt != nil {
		ts := op.CreatedAt
		localTS = &ts
	}
	return resolver.Resolve(op.Payload, fetched.Body, localTS, fetched.ModifiedAt, e.strategy)
}

func (e *SyncEngine) tryMergeMaintenance(local, server []byte) ([]byte, bool) {
	var localRec, serverRec models.MaintenanceRecord
	if err := json.Unmarshal(local, &localRec); err != nil {
		return nil, false
	}
	if err := json.Unmarshal(server, &serverRec); err != nil {
		return nil, false
	}

	merged, err := resolver.MergeMaintenanceRecords(localRec, serverRec)
	if err != nil {
		e.logger.Debug().Err(err).Msg("maintenance merge not applicable, falling back to strategy")
		return nil, false
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, false
	}
	return data, true
}

// dispatchDelete treats a not-found response as success: the desired end
// state, the entity being gone, was already achieved.
func (e *SyncEngine) dispatchDelete(ctx context.Context, op models.Operation) error {
	if err := e.remote.Delete(ctx, op.ContainerID, op.EntityID); err != nil {
		if errors.Is(err, adapter.ErrNotFound) {
			e.logger.Debug().Str("entity_id", op.EntityID).Msg("entity already absent on server, delete counts as success")
			return nil
		}
		return fmt.Errorf("delete %s: %w", op.EntityID, err)
	}
	return nil
}

// purgeCompleted removes delivered operations older than the retention
// window. Best effort: a failed purge never fails the pass.
func (e *SyncEngine) purgeCompleted(ctx context.Context) {
	if e.cfg.CompletedRetention <= 0 {
		return
	}
	cutoff := e.now().Add(-e.cfg.CompletedRetention)
	purged, err := e.outbox.PurgeCompleted(ctx, cutoff)
	if err != nil {
		e.logger.Warn().Err(err).Msg("failed to purge completed operations")
		return
	}
	if purged > 0 {
		e.logger.Debug().Int64("purged", purged).Msg("purged completed operations")
	}
}

// Package store implements the durable outbox: a status-tracked queue of
// pending mutations persisted in a local SQLite database. The outbox is the
// single source of truth for "what still needs to reach the server".
//
// Mutation-producing callers enqueue operations at any time, including while
// a sync pass is draining the queue; every status transition is a single
// atomic UPDATE, so per-record reads and writes are linearizable.
package store

import (
	"context"
	"time"

	"github.com/pkritskov/shellsync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/outbox_store_mock.go -package=mock

// OutboxStore is the contract of the durable outbox queue.
type OutboxStore interface {
	// Enqueue appends a new pending operation. A missing ID is assigned
	// (UUIDv7) and a zero CreatedAt is set to the current time; the
	// operation is validated before insertion.
	Enqueue(ctx context.Context, op *models.Operation) error

	// Get returns one operation by ID. Returns [ErrOperationNotFound] when
	// no such row exists.
	Get(ctx context.Context, id string) (models.Operation, error)

	// ListPending returns the operations eligible for the next sync pass:
	// status pending or failed with retry budget remaining, ordered by
	// priority (highest first) and then creation time (oldest first).
	// The result is a point-in-time snapshot.
	ListPending(ctx context.Context) ([]models.Operation, error)

	// MarkInProgress records that a network attempt is starting: status
	// becomes inProgress and the attempt timestamp is set.
	MarkInProgress(ctx context.Context, id string) error

	// MarkCompleted records a successful delivery and stamps the completion
	// time. Completed operations are retained until PurgeCompleted removes
	// them.
	MarkCompleted(ctx context.Context, id string) error

	// MarkFailed records a failed attempt: increments the attempt counter,
	// stores the error message, and returns the operation to the failed
	// state so the next cycle can retry it while budget remains.
	MarkFailed(ctx context.Context, id string, errMsg string) error

	// MarkRequiresAction terminally fails the operation: the attempt
	// counter is pinned to the retry budget so the eligibility query never
	// returns it again. Used for payload corruption, exhausted retries,
	// and manual conflict resolution.
	MarkRequiresAction(ctx context.Context, id string, errMsg string) error

	// Stats returns per-status counts over the whole outbox. A write that
	// completed before Stats is called is always visible.
	Stats(ctx context.Context) (models.OutboxStats, error)

	// PurgeCompleted deletes operations that completed before cutoff and
	// returns the number of rows removed.
	PurgeCompleted(ctx context.Context, cutoff time.Time) (int64, error)

	// RequeueStale returns inProgress operations whose last attempt started
	// before cutoff to the pending state. This reconciles operations
	// orphaned by a crash between a remote call and its status write.
	RequeueStale(ctx context.Context, cutoff time.Time) (int64, error)
}

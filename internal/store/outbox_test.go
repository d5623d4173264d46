package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkritskov/shellsync/internal/config"
	"github.com/pkritskov/shellsync/internal/logger"
	"github.com/pkritskov/shellsync/models"
)

func newTestStore(t *testing.T) *outboxStore {
	t.Helper()

	db, err := NewConnectSQLite(context.Background(), config.Storage{DSN: ":memory:"}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	return NewOutboxStore(db, logger.Nop()).(*outboxStore)
}

func testOperation(entityID string) *models.Operation {
	return &models.Operation{
		Type:        models.OperationCreate,
		EntityType:  "maintenance",
		EntityID:    entityID,
		ContainerID: "submodel-1",
		Payload:     []byte(`{"id":"` + entityID + `"}`),
		MaxRetries:  3,
	}
}

// ── Enqueue / Get ─────────────────────────────────────────────────────────────

func TestEnqueue_AssignsIDAndDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	op := testOperation("sr-001")
	require.NoError(t, s.Enqueue(ctx, op))

	assert.NotEmpty(t, op.ID)
	assert.False(t, op.CreatedAt.IsZero())
	assert.Equal(t, models.StatusPending, op.Status)

	got, err := s.Get(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, op.EntityID, got.EntityID)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Nil(t, got.LastAttemptAt)
	assert.Empty(t, got.LastErrorMessage)
}

func TestEnqueue_RejectsInvalidOperation(t *testing.T) {
	s := newTestStore(t)

	op := testOperation("sr-001")
	op.Type = "rename"

	require.Error(t, s.Enqueue(context.Background(), op))
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrOperationNotFound)
}

// ── ListPending ───────────────────────────────────────────────────────────────

func TestListPending_OrdersByPriorityThenCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)

	low := testOperation("low")
	low.Priority = 0
	low.CreatedAt = base
	older := testOperation("older-high")
	older.Priority = 5
	older.CreatedAt = base.Add(time.Minute)
	newer := testOperation("newer-high")
	newer.Priority = 5
	newer.CreatedAt = base.Add(2 * time.Minute)

	for _, op := range []*models.Operation{low, newer, older} {
		require.NoError(t, s.Enqueue(ctx, op))
	}

	ops, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, "older-high", ops[0].EntityID)
	assert.Equal(t, "newer-high", ops[1].EntityID)
	assert.Equal(t, "low", ops[2].EntityID)
}

func TestListPending_IncludesRetryableFailures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	op := testOperation("sr-001")
	require.NoError(t, s.Enqueue(ctx, op))
	require.NoError(t, s.MarkFailed(ctx, op.ID, "connection reset"))

	ops, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.StatusFailed, ops[0].Status)
	assert.Equal(t, int32(1), ops[0].AttemptCount)
	assert.Equal(t, "connection reset", ops[0].LastErrorMessage)
}

func TestListPending_ExcludesExhaustedAndTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exhausted := testOperation("exhausted")
	exhausted.MaxRetries = 2
	require.NoError(t, s.Enqueue(ctx, exhausted))
	require.NoError(t, s.MarkFailed(ctx, exhausted.ID, "try 1"))
	require.NoError(t, s.MarkFailed(ctx, exhausted.ID, "try 2"))

	manual := testOperation("manual")
	require.NoError(t, s.Enqueue(ctx, manual))
	require.NoError(t, s.MarkRequiresAction(ctx, manual.ID, "manual resolution required"))

	completed := testOperation("completed")
	require.NoError(t, s.Enqueue(ctx, completed))
	require.NoError(t, s.MarkCompleted(ctx, completed.ID))

	ops, err := s.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

// ── status transitions ────────────────────────────────────────────────────────

func TestMarkInProgress_SetsAttemptTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	op := testOperation("sr-001")
	require.NoError(t, s.Enqueue(ctx, op))
	require.NoError(t, s.MarkInProgress(ctx, op.ID))

	got, err := s.Get(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	require.NotNil(t, got.LastAttemptAt)
}

func TestMarkCompleted_ClearsError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	op := testOperation("sr-001")
	require.NoError(t, s.Enqueue(ctx, op))
	require.NoError(t, s.MarkFailed(ctx, op.ID, "transient"))
	require.NoError(t, s.MarkCompleted(ctx, op.ID))

	got, err := s.Get(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Empty(t, got.LastErrorMessage)
}

func TestMarkRequiresAction_PinsAttemptCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	op := testOperation("sr-001")
	require.NoError(t, s.Enqueue(ctx, op))
	require.NoError(t, s.MarkRequiresAction(ctx, op.ID, "payload corrupted"))

	got, err := s.Get(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, got.MaxRetries, got.AttemptCount)
	assert.True(t, got.RetriesExhausted())
}

func TestStatusTransitions_UnknownIDReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.MarkInProgress(ctx, "missing"), ErrOperationNotFound)
	assert.ErrorIs(t, s.MarkCompleted(ctx, "missing"), ErrOperationNotFound)
	assert.ErrorIs(t, s.MarkFailed(ctx, "missing", "x"), ErrOperationNotFound)
	assert.ErrorIs(t, s.MarkRequiresAction(ctx, "missing", "x"), ErrOperationNotFound)
}

// ── Stats / housekeeping ──────────────────────────────────────────────────────

func TestStats_CountsPerStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pending := testOperation("pending")
	require.NoError(t, s.Enqueue(ctx, pending))

	inProgress := testOperation("in-progress")
	require.NoError(t, s.Enqueue(ctx, inProgress))
	require.NoError(t, s.MarkInProgress(ctx, inProgress.ID))

	failed := testOperation("failed")
	require.NoError(t, s.Enqueue(ctx, failed))
	require.NoError(t, s.MarkFailed(ctx, failed.ID, "boom"))

	completed := testOperation("completed")
	require.NoError(t, s.Enqueue(ctx, completed))
	require.NoError(t, s.MarkCompleted(ctx, completed.ID))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.OutboxStats{
		PendingCount:    1,
		InProgressCount: 1,
		FailedCount:     1,
		CompletedCount:  1,
	}, stats)
}

func TestPurgeCompleted_RemovesOnlyOldCompleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cutoff := time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC)

	// Retention is measured from completion time, not from enqueue time:
	// an operation created long ago but completed just now must survive.
	oldCompleted := testOperation("old-completed")
	require.NoError(t, s.Enqueue(ctx, oldCompleted))
	s.now = func() time.Time { return cutoff.Add(-time.Hour) }
	require.NoError(t, s.MarkCompleted(ctx, oldCompleted.ID))

	freshCompleted := testOperation("fresh-completed")
	freshCompleted.CreatedAt = cutoff.Add(-24 * time.Hour)
	require.NoError(t, s.Enqueue(ctx, freshCompleted))
	s.now = func() time.Time { return cutoff.Add(time.Hour) }
	require.NoError(t, s.MarkCompleted(ctx, freshCompleted.ID))

	oldPending := testOperation("old-pending")
	oldPending.CreatedAt = cutoff.Add(-24 * time.Hour)
	require.NoError(t, s.Enqueue(ctx, oldPending))

	purged, err := s.PurgeCompleted(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = s.Get(ctx, oldCompleted.ID)
	assert.ErrorIs(t, err, ErrOperationNotFound)
	_, err = s.Get(ctx, freshCompleted.ID)
	assert.NoError(t, err)
	_, err = s.Get(ctx, oldPending.ID)
	assert.NoError(t, err)
}

func TestRequeueStale_RecoversOrphanedOperations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	op := testOperation("orphan")
	require.NoError(t, s.Enqueue(ctx, op))
	require.NoError(t, s.MarkInProgress(ctx, op.ID))

	requeued, err := s.RequeueStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), requeued)

	got, err := s.Get(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

// ── concurrent access ─────────────────────────────────────────────────────────

// TestEnqueue_ConcurrentWithDrain exercises the producer path writing while
// status transitions happen, as during a live sync pass.
func TestEnqueue_ConcurrentWithDrain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := testOperation("first")
	require.NoError(t, s.Enqueue(ctx, first))

	done := make(chan error, 1)
	go func() {
		var err error
		for i := 0; i < 20 && err == nil; i++ {
			err = s.Enqueue(ctx, testOperation("concurrent"))
		}
		done <- err
	}()

	require.NoError(t, s.MarkInProgress(ctx, first.ID))
	require.NoError(t, s.MarkCompleted(ctx, first.ID))

	require.NoError(t, <-done)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, stats.PendingCount)
	assert.Equal(t, 1, stats.CompletedCount)
}

// ── failure paths (sqlmock) ───────────────────────────────────────────────────

func newMockStore(t *testing.T) (*outboxStore, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	db := &DB{DB: conn, logger: logger.Nop()}
	return NewOutboxStore(db, logger.Nop()).(*outboxStore), mock
}

func TestMarkFailed_PersistenceErrorIsWrapped(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE outbox_operations").WillReturnError(assert.AnError)

	err := s.MarkFailed(context.Background(), "op-1", "boom")
	require.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPending_QueryErrorIsWrapped(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .* FROM outbox_operations").WillReturnError(assert.AnError)

	_, err := s.ListPending(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/pkritskov/shellsync/internal/logger"
	"github.com/pkritskov/shellsync/models"
)

const outboxTable = "outbox_operations"

var outboxColumns = []string{
	"id",
	"operation_type",
	"entity_type",
	"entity_id",
	"container_id",
	"payload",
	"priority",
	"status",
	"attempt_count",
	"max_retries",
	"created_at",
	"last_attempt_at",
	"last_error_message",
}

type outboxStore struct {
	*DB
	logger *logger.Logger
	now    func() time.Time
}

// NewOutboxStore constructs the SQLite-backed [OutboxStore].
func NewOutboxStore(db *DB, log *logger.Logger) OutboxStore {
	return &outboxStore{DB: db, logger: log, now: time.Now}
}

func (s *outboxStore) Enqueue(ctx context.Context, op *models.Operation) error {
	if op.ID == "" {
		op.ID = newOperationID()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = s.now().UTC()
	}
	if op.Status == "" {
		op.Status = models.StatusPending
	}

	if err := op.Validate(); err != nil {
		return fmt.Errorf("enqueue operation: %w", err)
	}

	query, args, err := sq.Insert(outboxTable).
		Columns(outboxColumns...).
		Values(
			op.ID,
			op.Type,
			op.EntityType,
			op.EntityID,
			op.ContainerID,
			op.Payload,
			op.Priority,
			op.Status,
			op.AttemptCount,
			op.MaxRetries,
			op.CreatedAt,
			op.LastAttemptAt,
			nullableString(op.LastErrorMessage),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build enqueue query: %w", err)
	}

	if _, err = s.ExecContext(ctx, query, args...); err != nil {
		s.logger.Err(err).
			Str("operation_id", op.ID).
			Str("entity_id", op.EntityID).
			Msg("failed to enqueue outbox operation")
		return fmt.Errorf("enqueue operation %s: %w", op.ID, err)
	}

	return nil
}

func (s *outboxStore) Get(ctx context.Context, id string) (models.Operation, error) {
	query, args, err := sq.Select(outboxColumns...).
		From(outboxTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return models.Operation{}, fmt.Errorf("build get query: %w", err)
	}

	op, err := scanOperation(s.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Operation{}, fmt.Errorf("operation %s: %w", id, ErrOperationNotFound)
		}
		return models.Operation{}, fmt.Errorf("get operation %s: %w", id, err)
	}

	return op, nil
}

func (s *outboxStore) ListPending(ctx context.Context) ([]models.Operation, error) {
	query, args, err := sq.Select(outboxColumns...).
		From(outboxTable).
		Where(sq.And{
			sq.Or{
				sq.Eq{"status": models.StatusPending},
				sq.Eq{"status": models.StatusFailed},
			},
			sq.Expr("attempt_count < max_retries"),
		}).
		OrderBy("priority DESC", "created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list pending query: %w", err)
	}

	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Err(err).Msg("failed to query pending outbox operations")
		return nil, fmt.Errorf("list pending operations: %w", err)
	}
	defer rows.Close()

	var ops []models.Operation
	for rows.Next() {
		op, scanErr := scanOperation(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan pending operation: %w", scanErr)
		}
		ops = append(ops, op)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate pending operations: %w", rowsErr)
	}

	return ops, nil
}

func (s *outboxStore) MarkInProgress(ctx context.Context, id string) error {
	return s.update(ctx, id, sq.Update(outboxTable).
		Set("status", models.StatusInProgress).
		Set("last_attempt_at", s.now().UTC()).
		Where(sq.Eq{"id": id}))
}

func (s *outboxStore) MarkCompleted(ctx context.Context, id string) error {
	return s.update(ctx, id, sq.Update(outboxTable).
		Set("status", models.StatusCompleted).
		Set("last_attempt_at", s.now().UTC()).
		Set("last_error_message", nil).
		Where(sq.Eq{"id": id}))
}

func (s *outboxStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return s.update(ctx, id, sq.Update(outboxTable).
		Set("status", models.StatusFailed).
		Set("attempt_count", sq.Expr("attempt_count + 1")).
		Set("last_error_message", errMsg).
		Where(sq.Eq{"id": id}))
}

func (s *outboxStore) MarkRequiresAction(ctx context.Context, id string, errMsg string) error {
	return s.update(ctx, id, sq.Update(outboxTable).
		Set("status", models.StatusFailed).
		Set("attempt_count", sq.Expr("max_retries")).
		Set("last_error_message", errMsg).
		Where(sq.Eq{"id": id}))
}

func (s *outboxStore) update(ctx context.Context, id string, builder sq.UpdateBuilder) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build status update query: %w", err)
	}

	res, err := s.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Err(err).Str("operation_id", id).Msg("failed to update outbox operation status")
		return fmt.Errorf("update operation %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update operation %s rows affected: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("operation %s: %w", id, ErrOperationNotFound)
	}

	return nil
}

func (s *outboxStore) Stats(ctx context.Context) (models.OutboxStats, error) {
	query, args, err := sq.Select("status", "COUNT(*)").
		From(outboxTable).
		GroupBy("status").
		ToSql()
	if err != nil {
		return models.OutboxStats{}, fmt.Errorf("build stats query: %w", err)
	}

	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return models.OutboxStats{}, fmt.Errorf("query outbox stats: %w", err)
	}
	defer rows.Close()

	var stats models.OutboxStats
	for rows.Next() {
		var status models.OperationStatus
		var count int
		if err = rows.Scan(&status, &count); err != nil {
			return models.OutboxStats{}, fmt.Errorf("scan outbox stats: %w", err)
		}
		switch status {
		case models.StatusPending:
			stats.PendingCount = count
		case models.StatusInProgress:
			stats.InProgressCount = count
		case models.StatusCompleted:
			stats.CompletedCount = count
		case models.StatusFailed:
			stats.FailedCount = count
		}
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return models.OutboxStats{}, fmt.Errorf("iterate outbox stats: %w", rowsErr)
	}

	return stats, nil
}

func (s *outboxStore) PurgeCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := sq.Delete(outboxTable).
		Where(sq.And{
			sq.Eq{"status": models.StatusCompleted},
			sq.Lt{"last_attempt_at": cutoff},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge query: %w", err)
	}

	res, err := s.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Err(err).Msg("failed to purge completed outbox operations")
		return 0, fmt.Errorf("purge completed operations: %w", err)
	}

	return res.RowsAffected()
}

func (s *outboxStore) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := sq.Update(outboxTable).
		Set("status", models.StatusPending).
		Where(sq.And{
			sq.Eq{"status": models.StatusInProgress},
			sq.Lt{"last_attempt_at": cutoff},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build requeue query: %w", err)
	}

	res, err := s.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Err(err).Msg("failed to requeue stale outbox operations")
		return 0, fmt.Errorf("requeue stale operations: %w", err)
	}

	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (models.Operation, error) {
	var op models.Operation
	var lastAttemptAt sql.NullTime
	var lastError sql.NullString

	err := row.Scan(
		&op.ID,
		&op.Type,
		&op.EntityType,
		&op.EntityID,
		&op.ContainerID,
		&op.Payload,
		&op.Priority,
		&op.Status,
		&op.AttemptCount,
		&op.MaxRetries,
		&op.CreatedAt,
		&lastAttemptAt,
		&lastError,
	)
	if err != nil {
		return models.Operation{}, err
	}

	if lastAttemptAt.Valid {
		ts := lastAttemptAt.Time
		op.LastAttemptAt = &ts
	}
	if lastError.Valid {
		op.LastErrorMessage = lastError.String
	}

	return op, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func newOperationID() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return v7.String()
}

package store

import "errors"

var (
	// ErrOperationNotFound indicates that no outbox row matches the
	// requested operation ID.
	ErrOperationNotFound = errors.New("outbox operation not found")
)

package service

import "errors"

var (
	// ErrSyncInProgress is returned when a sync pass is requested while one
	// is already running. Starting is single-flight: the second request is
	// a no-op that leaves the running pass untouched.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrSyncNotAllowed is returned when current network conditions do not
	// satisfy the sync policy (offline, or a metered link with the
	// wifi-only flag set).
	ErrSyncNotAllowed = errors.New("sync not allowed by network policy")

	// ErrNothingToSync is returned when the outbox holds no eligible
	// pending operations.
	ErrNothingToSync = errors.New("no pending operations to sync")

	// ErrCancelled marks work stopped by cooperative cancellation.
	ErrCancelled = errors.New("sync cancelled")

	// ErrLeaseExpired marks work stopped because the host revoked the
	// execution window.
	ErrLeaseExpired = errors.New("execution lease expired")

	// ErrRetriesExhausted marks an operation whose retry budget is spent.
	// The operation is parked until the user intervenes.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrManualResolutionRequired marks a conflict the configured strategy
	// refuses to resolve automatically.
	ErrManualResolutionRequired = errors.New("manual conflict resolution required")

	// ErrPayloadDecode marks an operation whose stored payload cannot be
	// decoded and therefore can never succeed, no matter how often it is
	// retried.
	ErrPayloadDecode = errors.New("payload could not be decoded")
)

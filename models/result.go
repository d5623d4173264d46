package models

// SyncResult is the immutable summary of one sync pass. Skipped counts
// operations whose error requires user action before they can proceed;
// Failures counts transient errors that are eligible for the next cycle.
type SyncResult struct {
	SuccessCount int
	FailureCount int
	SkippedCount int
	Errors       []error
}

// Merge combines two results. The merge is associative, so multi-batch runs
// can fold their per-batch results in any grouping.
func (r SyncResult) Merge(other SyncResult) SyncResult {
	var errs []error
	if len(r.Errors)+len(other.Errors) > 0 {
		errs = make([]error, 0, len(r.Errors)+len(other.Errors))
		errs = append(errs, r.Errors...)
		errs = append(errs, other.Errors...)
	}
	return SyncResult{
		SuccessCount: r.SuccessCount + other.SuccessCount,
		FailureCount: r.FailureCount + other.FailureCount,
		SkippedCount: r.SkippedCount + other.SkippedCount,
		Errors:       errs,
	}
}

// Processed returns the total number of operations accounted for by the
// result.
func (r SyncResult) Processed() int {
	return r.SuccessCount + r.FailureCount + r.SkippedCount
}

// SyncState is the engine's externally observable lifecycle state.
type SyncState string

const (
	SyncIdle       SyncState = "idle"
	SyncRunning    SyncState = "syncing"
	SyncCancelling SyncState = "cancelling"
)

// SyncProgress is a point-in-time snapshot published by the engine after
// every state transition and after each processed operation.
type SyncProgress struct {
	State      SyncState
	Processed  int
	Total      int
	StatusText string
}

// Fraction returns the completed share of the current pass in [0, 1].
func (p SyncProgress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Processed) / float64(p.Total)
}

// OutboxStats is the aggregate view over the outbox returned by the store.
type OutboxStats struct {
	PendingCount    int
	InProgressCount int
	FailedCount     int
	CompletedCount  int
}

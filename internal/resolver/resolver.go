// Package resolver decides what happens when a locally queued change and the
// server's current state of the same entity have diverged.
package resolver

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pkritskov/shellsync/models"
)

// Detect reports whether local and server payloads represent different entity
// states. The comparison is whole-entity: both payloads are canonicalized
// (stable field ordering, literal number forms) and compared byte for byte,
// so a difference in any field counts as a conflict even when the fields
// touched locally and remotely are disjoint.
func Detect(local, server []byte) (bool, error) {
	canonicalLocal, err := models.CanonicalJSON(local)
	if err != nil {
		return false, fmt.Errorf("canonicalize local payload: %w", err)
	}
	canonicalServer, err := models.CanonicalJSON(server)
	if err != nil {
		return false, fmt.Errorf("canonicalize server payload: %w", err)
	}

	return !bytes.Equal(canonicalLocal, canonicalServer), nil
}

// Resolve maps a detected conflict to a Resolution. It is a pure function of
// its arguments: no clock reads, no I/O, no retained state.
//
// Under StrategyLastWriteWins the server acts as the default authority:
// the strictly later timestamp wins, and every ambiguous case (equal
// timestamps, missing local timestamp, both missing) resolves to useServer.
// Only a local timestamp with no server counterpart resolves to useClient.
func Resolve(local, server []byte, localTS, serverTS *time.Time, strategy models.ConflictStrategy) (models.Resolution, error) {
	switch strategy {
	case models.StrategyServerWins:
		return models.UseServer(server), nil
	case models.StrategyClientWins:
		return models.UseClient(local), nil
	case models.StrategyManual:
		return models.RequiresManualResolution(local, server), nil
	case models.StrategyLastWriteWins:
		return lastWriteWins(local, server, localTS, serverTS), nil
	default:
		return models.Resolution{}, fmt.Errorf("unknown conflict strategy %q", strategy)
	}
}

func lastWriteWins(local, server []byte, localTS, serverTS *time.Time) models.Resolution {
	switch {
	case localTS != nil && serverTS != nil:
		if localTS.After(*serverTS) {
			return models.UseClient(local)
		}
		return models.UseServer(server)
	case localTS != nil:
		return models.UseClient(local)
	default:
		return models.UseServer(server)
	}
}

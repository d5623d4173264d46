package models

import (
	"fmt"
	"time"
)

// ConflictStrategy selects the policy applied when a local pending change
// and the server's current state diverge for the same entity.
type ConflictStrategy string

const (
	StrategyServerWins    ConflictStrategy = "serverWins"
	StrategyClientWins    ConflictStrategy = "clientWins"
	StrategyLastWriteWins ConflictStrategy = "lastWriteWins"
	StrategyManual        ConflictStrategy = "manualResolution"
)

// ParseConflictStrategy converts a configuration string into a
// ConflictStrategy.
func ParseConflictStrategy(s string) (ConflictStrategy, error) {
	switch ConflictStrategy(s) {
	case StrategyServerWins, StrategyClientWins, StrategyLastWriteWins, StrategyManual:
		return ConflictStrategy(s), nil
	default:
		return "", fmt.Errorf("unknown conflict strategy %q", s)
	}
}

// ResolutionKind is the discriminator of a Resolution.
type ResolutionKind string

const (
	ResolutionUseServer ResolutionKind = "useServer"
	ResolutionUseClient ResolutionKind = "useClient"
	ResolutionMerged    ResolutionKind = "merged"
	ResolutionManual    ResolutionKind = "requiresManualResolution"
)

// Resolution is the outcome of conflict handling. Data carries the winning
// payload for the three automatic kinds; for ResolutionManual both sides are
// retained so they can be surfaced to the user.
type Resolution struct {
	Kind   ResolutionKind
	Data   []byte
	Local  []byte
	Server []byte
}

// Automatic reports whether the resolution can be applied without user
// involvement.
func (r Resolution) Automatic() bool {
	return r.Kind != ResolutionManual
}

func UseServer(data []byte) Resolution { return Resolution{Kind: ResolutionUseServer, Data: data} }
func UseClient(data []byte) Resolution { return Resolution{Kind: ResolutionUseClient, Data: data} }
func Merged(data []byte) Resolution    { return Resolution{Kind: ResolutionMerged, Data: data} }

func RequiresManualResolution(local, server []byte) Resolution {
	return Resolution{Kind: ResolutionManual, Local: local, Server: server}
}

// ConflictInfo is an immutable audit record created whenever local and
// server serialized forms differ. It is consumed by logging and audit
// collaborators and never mutated after creation.
type ConflictInfo struct {
	OperationID     string           `json:"operation_id"`
	EntityType      string           `json:"entity_type"`
	EntityID        string           `json:"entity_id"`
	ContainerID     string           `json:"container_id"`
	LocalPayload    []byte           `json:"local_payload"`
	ServerPayload   []byte           `json:"server_payload"`
	LocalTimestamp  *time.Time       `json:"local_timestamp,omitempty"`
	ServerTimestamp *time.Time       `json:"server_timestamp,omitempty"`
	Strategy        ConflictStrategy `json:"strategy"`
	Resolution      ResolutionKind   `json:"resolution"`
	DetectedAt      time.Time        `json:"detected_at"`
}

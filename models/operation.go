package models

import (
	"fmt"
	"time"
)

// OperationType identifies the kind of mutation an outbox operation carries.
type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

// OperationStatus is the lifecycle state of an outbox operation.
type OperationStatus string

const (
	StatusPending    OperationStatus = "pending"
	StatusInProgress OperationStatus = "inProgress"
	StatusCompleted  OperationStatus = "completed"
	StatusFailed     OperationStatus = "failed"
)

// Operation is a durable record of one pending mutation awaiting delivery to
// the remote repository. It is created when a mutation occurs (including
// while offline) and transitions through StatusPending → StatusInProgress →
// StatusCompleted/StatusFailed as the sync engine drains the outbox.
//
// Payload is the opaque serialized form of the domain entity; the sync core
// never interprets it beyond conflict detection, which works on the
// canonicalized JSON form.
type Operation struct {
	ID               string          `json:"id"`
	Type             OperationType   `json:"operation_type"`
	EntityType       string          `json:"entity_type"`
	EntityID         string          `json:"entity_id"`
	ContainerID      string          `json:"container_id"`
	Payload          []byte          `json:"payload"`
	Priority         int32           `json:"priority"`
	Status           OperationStatus `json:"status"`
	AttemptCount     int32           `json:"attempt_count"`
	MaxRetries       int32           `json:"max_retries"`
	CreatedAt        time.Time       `json:"created_at"`
	LastAttemptAt    *time.Time      `json:"last_attempt_at,omitempty"`
	LastErrorMessage string          `json:"last_error_message,omitempty"`
}

// RetriesExhausted reports whether the operation has used up its retry
// budget and must not be retried automatically.
func (o Operation) RetriesExhausted() bool {
	return o.AttemptCount >= o.MaxRetries
}

// Validate checks the structural invariants required before an operation may
// be enqueued.
func (o Operation) Validate() error {
	switch o.Type {
	case OperationCreate, OperationUpdate, OperationDelete:
	default:
		return fmt.Errorf("unknown operation type %q", o.Type)
	}
	if o.EntityID == "" {
		return fmt.Errorf("operation %s: empty entity id", o.ID)
	}
	if o.ContainerID == "" {
		return fmt.Errorf("operation %s: empty container id", o.ID)
	}
	if o.MaxRetries < 0 {
		return fmt.Errorf("operation %s: negative max retries", o.ID)
	}
	return nil
}

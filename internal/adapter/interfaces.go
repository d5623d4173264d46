// Package adapter provides the transport layer for communicating with the
// remote submodel repository.
//
// The primary abstraction is [RemoteRepository], which decouples the sync
// engine from the underlying protocol. The package ships an HTTP/REST
// implementation ([NewHTTPRemoteRepository]) built on resty with jittered
// exponential retry for transient failures.
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] for transport-agnostic
// error handling (e.g. [ErrNotFound] for 404, [ErrRateLimited] for 429).
package adapter

import (
	"context"
	"time"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/remote_repository_mock.go -package=mock

// FetchResult carries an entity read from the remote repository together
// with the server-side modification timestamp, when the server reports one
// via the Last-Modified header. The timestamp feeds last-write-wins conflict
// resolution; it is nil when the server does not expose it.
type FetchResult struct {
	Body       []byte
	ModifiedAt *time.Time
}

// RemoteRepository defines transport-agnostic CRUD access to entities stored
// under a named container of the remote repository. Implementations are
// responsible for serialisation, authentication header management, retrying
// transient failures, and mapping transport-level errors to the sentinel
// values defined in this package.
//
// All methods honour ctx for cancellation; an operation already on the wire
// runs to completion or its own timeout.
type RemoteRepository interface {
	// Create posts body as a new element of container and returns the
	// server's representation of the created entity.
	Create(ctx context.Context, container string, body []byte) ([]byte, error)

	// Fetch reads the current server state of the element at path inside
	// container. Returns [ErrNotFound] (wrapped) when the element does not
	// exist on the server.
	Fetch(ctx context.Context, container, path string) (FetchResult, error)

	// Update replaces the element at path inside container with body.
	Update(ctx context.Context, container, path string, body []byte) error

	// Delete removes the element at path inside container. Returns
	// [ErrNotFound] (wrapped) when the element is already gone; callers
	// decide whether that counts as success.
	Delete(ctx context.Context, container, path string) error
}

// TokenSource supplies the bearer token attached to authenticated requests.
// Implementations may fetch or refresh tokens asynchronously; Token must be
// safe for concurrent use.
type TokenSource interface {
	// Token returns a currently valid bearer token, or an empty string when
	// the repository does not require authentication.
	Token(ctx context.Context) (string, error)
}

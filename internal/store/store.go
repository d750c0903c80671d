package store

import (
	"context"
	"errors"
	"time"
)

// Errors surfaced by content store operations. Remote rate limiting and
// stale deletes propagate to the caller; nothing is retried here.
var (
	ErrConflict    = errors.New("object already exists at path")
	ErrNotFound    = errors.New("object not found")
	ErrStale       = errors.New("object changed since it was listed")
	ErrThrottled   = errors.New("content store is rate limiting requests")
	ErrUnreachable = errors.New("content store unreachable")
)

// Object is one entry from a full store listing
type Object struct {
	Path string
	SHA  string
}

// ObjectRef describes a newly stored object
type ObjectRef struct {
	Path string
	SHA  string
	Size int64
}

// ContentStore is the remote object store the relay reads and writes.
// All operations are network calls and may fail independently; a
// timeout on each call is the only cancellation primitive.
type ContentStore interface {
	// Put stores content at path. Paths are generated to avoid
	// collision; a remote conflict surfaces as ErrConflict.
	Put(ctx context.Context, path string, content []byte, message string) (*ObjectRef, error)

	// Get returns the object's bytes and the content type reported by
	// the remote, or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, string, error)

	// List enumerates every regular file in the store in one logical
	// call, tree entries excluded.
	List(ctx context.Context) ([]Object, error)

	// LastChange returns the most recent recorded change time for path
	LastChange(ctx context.Context, path string) (time.Time, error)

	// Delete removes the object at path, conditioned on the SHA
	// observed at list time. A mismatch surfaces as ErrStale.
	Delete(ctx context.Context, path, sha, message string) error
}

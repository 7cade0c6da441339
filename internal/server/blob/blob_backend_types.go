package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrObjectNotFound = errors.New("blob: object not found")
	ErrInvalidKey     = errors.New("blob: invalid key")
)

// Backend is a read-only asset store. Keys are slash separated paths
// relative to the published asset root.
type Backend interface {
	// GetObject opens an object for streaming. Callers close the body.
	GetObject(ctx context.Context, key string) (*GetObjectResponse, error)

	// Exists reports whether key resolves to a stored object.
	Exists(ctx context.Context, key string) (bool, error)

	// Name identifies the backend in logs and health output.
	Name() string

	Close() error
}

type GetObjectResponse struct {
	Body         io.ReadCloser
	ETag         string
	Size         int64
	LastModified time.Time
}

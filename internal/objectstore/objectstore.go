// Package objectstore defines the byte store holding originals and
// thumbnails, addressed by bucket-relative key.
package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound indicates that no object exists under the key.
var ErrNotFound = errors.New("objectstore: not found")

// Object is a readable stored object. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Store is safe for concurrent use.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	// Delete removes the object. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

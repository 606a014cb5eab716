// Package storage provides the destination backends for downloaded media
// content. All operations stream through io.Reader/io.Writer so large media
// files never load entirely into memory.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when no content exists under a key.
var ErrNotFound = errors.New("storage: content not found")

// Storage is the interface for media content backends.
type Storage interface {
	// Put stores content under key, replacing any existing content.
	// size is the number of bytes that will be read from r; pass a negative
	// size when the length is not known up front (no size verification).
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Open returns a reader for the content under key.
	// Returns ErrNotFound if nothing is stored there.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content under key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// ValidateSetup verifies the backend is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}

// Package storage keeps binary artifacts, such as archived conversation
// audio, on the local disk or in an S3-compatible bucket.
//
// Paths are forward-slash separated and relative to the store root.
package storage

import "context"

// FileStore holds whole files. Implementations are safe for concurrent use.
type FileStore interface {
	// Get fails with an error wrapping os.ErrNotExist for missing files.
	Get(ctx context.Context, path string) ([]byte, error)

	// Put replaces the file at path.
	Put(ctx context.Context, path string, data []byte) error

	// Delete is a no-op for missing files.
	Delete(ctx context.Context, path string) error

	// List returns the sorted paths of every file under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

var (
	_ FileStore = (*Local)(nil)
	_ FileStore = (*S3Store)(nil)
)

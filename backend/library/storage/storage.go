// Package storage provides the pluggable object-store nodes chunks are
// written to, and the registry that assigns a node to each new file.
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrObjectNotFound = errors.New("storage: object not found")
	ErrInvalidKey     = errors.New("storage: invalid object key")
)

// ObjectStore is the minimal contract a backing node must provide. Objects
// are addressed by opaque keys; the engine uses "<fileID>/<chunkHash>" so the
// same hash under two different files is a distinct physical object.
type ObjectStore interface {
	// PutObject stores the full content of r under key, replacing any
	// existing object. Re-writing the same content is safe.
	PutObject(ctx context.Context, key string, r io.Reader) error
	// GetObject opens the object for reading from the beginning.
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	// GetObjectRange opens length bytes starting at offset. length < 0 means
	// "to the end of the object".
	GetObjectRange(ctx context.Context, key string, offset int64, length int64) (io.ReadCloser, error)
	// StatObject returns the stored size, or ErrObjectNotFound.
	StatObject(ctx context.Context, key string) (int64, error)
	// DeleteObject removes the object. Deleting a missing key is not an error.
	DeleteObject(ctx context.Context, key string) error
}

// ChunkKey builds the object key for one chunk of one file.
func ChunkKey(fileID string, hash string) string {
	return fileID + "/" + hash
}

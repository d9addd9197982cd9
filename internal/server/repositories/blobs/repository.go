// Package blobs provides the blob-store port for large text bodies and its
// S3 implementation.
package blobs

import "context"

// Repository is the blob-store capability consumed by the storage engine.
// Bodies above the tiering threshold live here, keyed by the blob ref
// stored on the metadata record.
type Repository interface {
	// Put stores data under key, overwriting any previous object.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the object stored under key, or common.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object under key. The boolean reports whether the
	// delete request was accepted; object stores with idempotent deletes
	// report true whenever the call succeeds.
	Delete(ctx context.Context, key string) (bool, error)
}

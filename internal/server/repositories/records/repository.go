// Package records provides the key-store port for text records and its
// PostgreSQL and bbolt implementations. A record past its expiry is
// invisible to every method except DeleteExpired, regardless of backend.
package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/textshr/internal/server/models"
)

// Repository is the key-store capability consumed by the storage engine.
type Repository interface {
	// Create inserts a record if its key is not already taken by a live
	// record. Returns common.ErrDuplicateKey on collision. The insert is
	// atomic: two concurrent Creates for the same key cannot both succeed.
	Create(ctx context.Context, rec *models.TextRecord) error

	// Get returns the live record stored under key, or common.ErrNotFound.
	Get(ctx context.Context, key string) (*models.TextRecord, error)

	// Replace atomically swaps the record stored under rec.Key. The key is
	// never observable as absent during the swap. Returns
	// common.ErrNotFound when no live record exists under the key.
	Replace(ctx context.Context, rec *models.TextRecord) error

	// Delete removes the record under key. The boolean reports whether a
	// record was actually removed, so a caller can detect whether it won
	// a concurrent delete race.
	Delete(ctx context.Context, key string) (bool, error)

	// DeleteExpired removes up to limit records whose expiry precedes
	// before, returning the removed records (key and blob ref populated)
	// so associated blobs can be cleaned up.
	DeleteExpired(ctx context.Context, before time.Time, limit int) ([]*models.TextRecord, error)
}

// Package sessions persists server-side session rows with a sliding TTL.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/textshr/internal/server/models"
)

// Repository is the session store used by the session service.
type Repository interface {
	// Create inserts a new session row.
	Create(ctx context.Context, sess *models.Session) error

	// Refresh slides the expiry of a live session to expiresAt. Returns
	// false when no live session exists under id.
	Refresh(ctx context.Context, id string, expiresAt time.Time) (bool, error)

	// DeleteExpired removes sessions whose expiry precedes before,
	// returning the number removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Package repomanager opens a storage backend and hands out the
// repositories built on it. The backend is an injected dependency of the
// services, never a package-level global, so tests substitute doubles and
// shutdown releases connections in one place.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/textshr/internal/server/repositories/records"
	"github.com/dmitrijs2005/textshr/internal/server/repositories/sessions"
)

// RepositoryManager owns the backend connection and the repositories
// sharing it.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Records() records.Repository
	Sessions() sessions.Repository
	Close() error
}

package repomanager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/dmitrijs2005/textshr/internal/server/repositories/records"
	"github.com/dmitrijs2005/textshr/internal/server/repositories/sessions"
)

// BoltRepositoryManager backs the repositories with an embedded bbolt
// database, for single-binary deployments without a Postgres instance.
type BoltRepositoryManager struct {
	db       *bbolt.DB
	records  records.Repository
	sessions sessions.Repository
}

var _ RepositoryManager = (*BoltRepositoryManager)(nil)

// NewBoltRepositoryManager opens or creates the database file at path.
// The parent directory is created if it does not exist.
func NewBoltRepositoryManager(path string) (*BoltRepositoryManager, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	recs, err := records.NewBoltRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	sess, err := sessions.NewBoltRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltRepositoryManager{db: db, records: recs, sessions: sess}, nil
}

// RunMigrations is a no-op: bucket creation happens in the repository
// constructors.
func (m *BoltRepositoryManager) RunMigrations(ctx context.Context) error { return nil }

func (m *BoltRepositoryManager) Records() records.Repository { return m.records }

func (m *BoltRepositoryManager) Sessions() sessions.Repository { return m.sessions }

func (m *BoltRepositoryManager) Close() error { return m.db.Close() }

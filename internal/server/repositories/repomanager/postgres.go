package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/textshr/internal/server/migrations"
	"github.com/dmitrijs2005/textshr/internal/server/repositories/records"
	"github.com/dmitrijs2005/textshr/internal/server/repositories/sessions"
)

// PostgresRepositoryManager backs the repositories with PostgreSQL via the
// pgx stdlib driver.
type PostgresRepositoryManager struct {
	db       *sql.DB
	records  records.Repository
	sessions sessions.Repository
}

var _ RepositoryManager = (*PostgresRepositoryManager)(nil)

// NewPostgresRepositoryManager opens the database and builds the
// repositories. Pending migrations are applied by RunMigrations, which the
// caller invokes once at startup.
func NewPostgresRepositoryManager(ctx context.Context, dsn string) (*PostgresRepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	return &PostgresRepositoryManager{
		db:       db,
		records:  records.NewPostgresRepository(db),
		sessions: sessions.NewPostgresRepository(db),
	}, nil
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, m.db, ".")
}

func (m *PostgresRepositoryManager) Records() records.Repository { return m.records }

func (m *PostgresRepositoryManager) Sessions() sessions.Repository { return m.sessions }

func (m *PostgresRepositoryManager) Close() error { return m.db.Close() }

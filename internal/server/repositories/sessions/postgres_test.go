package sessions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/textshr/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`^INSERT\s+INTO\s+sessions`).
		WithArgs("sess-1", now, now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Session{
		ID: "sess-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestRefresh(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour)
	mock.ExpectExec(`^UPDATE\s+sessions\s+SET\s+expires_at`).
		WithArgs("sess-1", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^UPDATE\s+sessions`).
		WithArgs("ghost", exp).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Refresh(context.Background(), "sess-1", exp)
	if err != nil || !ok {
		t.Fatalf("expected refresh to hit, got ok=%v err=%v", ok, err)
	}
	ok, err = repo.Refresh(context.Background(), "ghost", exp)
	if err != nil || ok {
		t.Fatalf("expected refresh to miss, got ok=%v err=%v", ok, err)
	}
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`^DELETE\s+FROM\s+sessions\s+WHERE\s+expires_at`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), now)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 removed, got n=%d err=%v", n, err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^INSERT`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Session{ID: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
}

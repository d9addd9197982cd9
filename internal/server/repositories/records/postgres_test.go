package records

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/textshr/internal/common"
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

func sampleRecord() *models.TextRecord {
	return &models.TextRecord{
		Key:       "abc12",
		Body:      "hello",
		Creator:   "sess-1",
		Size:      5,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

const insertPattern = `(?s)^\s*INSERT\s+INTO\s+text_records\s*\(key,\s*body,\s*blob_ref,\s*creator,\s*size,\s*summary,\s*password_hash,\s*only_one_read,\s*expires_at\)`

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertPattern).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreate_DuplicateKey(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// live row under the key: conflict clause affects no row
	mock.ExpectExec(insertPattern).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), sampleRecord())
	if !errors.Is(err, common.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertPattern).
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), sampleRecord())
	if err == nil || errors.Is(err, common.ErrDuplicateKey) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour)
	rows := sqlmock.NewRows([]string{"key", "body", "blob_ref", "creator", "size", "summary", "password_hash", "only_one_read", "expires_at"}).
		AddRow("abc12", "hello", nil, "sess-1", 5, nil, nil, false, exp)

	mock.ExpectQuery(`(?s)^\s*SELECT\s+key,\s*body,\s*blob_ref,.*FROM\s+text_records\s+WHERE\s+key\s*=\s*\$1\s+AND\s+expires_at\s*>\s*now\(\)`).
		WithArgs("abc12").
		WillReturnRows(rows)

	rec, err := repo.Get(context.Background(), "abc12")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec.Body != "hello" || rec.Creator != "sess-1" || !rec.Inline() {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_BlobBackedRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour)
	rows := sqlmock.NewRows([]string{"key", "body", "blob_ref", "creator", "size", "summary", "password_hash", "only_one_read", "expires_at"}).
		AddRow("big01", nil, "blobs/big01", "sess-1", 20000, "notes", nil, true, exp)

	mock.ExpectQuery(`SELECT`).
		WithArgs("big01").
		WillReturnRows(rows)

	rec, err := repo.Get(context.Background(), "big01")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec.Inline() || rec.BlobRef != "blobs/big01" || !rec.OnlyOneRead || rec.Summary != "notes" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestReplace_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^\s*DELETE\s+FROM\s+text_records\s+WHERE\s+key\s*=\s*\$1`).
		WithArgs("abc12").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertPattern).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Replace(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("Replace error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestReplace_NotFound_RollsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE`).
		WithArgs("abc12").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), sampleRecord())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE`).
		WithArgs("abc12").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Delete(context.Background(), "abc12")
	if err != nil || !ok {
		t.Fatalf("expected deleted=true, got ok=%v err=%v", ok, err)
	}
	ok, err = repo.Delete(context.Background(), "missing")
	if err != nil || ok {
		t.Fatalf("expected deleted=false, got ok=%v err=%v", ok, err)
	}
}

func TestDeleteExpired_ReturnsBlobRefs(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"key", "blob_ref"}).
		AddRow("old01", nil).
		AddRow("old02", "blobs/old02")

	mock.ExpectQuery(`(?s)^\s*DELETE\s+FROM\s+text_records\s+WHERE\s+key\s+IN`).
		WithArgs(now, 100).
		WillReturnRows(rows)

	removed, err := repo.DeleteExpired(context.Background(), now, 100)
	if err != nil {
		t.Fatalf("DeleteExpired error: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed records, got %d", len(removed))
	}
	if removed[0].BlobRef != "" || removed[1].BlobRef != "blobs/old02" {
		t.Fatalf("unexpected blob refs: %+v %+v", removed[0], removed[1])
	}
}

package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/textshr/internal/common"
	"github.com/dmitrijs2005/textshr/internal/dbx"
	"github.com/dmitrijs2005/textshr/internal/server/models"
)

// PostgresRepository implements record storage over *sql.DB (pgx stdlib
// driver). Expiry is enforced in SQL: live means expires_at > now().
type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository constructs a repository bound to the given DB.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the record if the key is free. An expired row under the
// same key does not count as taken and is overwritten in place, so stale
// rows never block key reuse. When a live row holds the key, no row is
// affected and ErrDuplicateKey is returned.
func (r *PostgresRepository) Create(ctx context.Context, rec *models.TextRecord) error {
	query := `
		INSERT INTO text_records (key, body, blob_ref, creator, size, summary, password_hash, only_one_read, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (key)
		DO UPDATE SET
			body = EXCLUDED.body,
			blob_ref = EXCLUDED.blob_ref,
			creator = EXCLUDED.creator,
			size = EXCLUDED.size,
			summary = EXCLUDED.summary,
			password_hash = EXCLUDED.password_hash,
			only_one_read = EXCLUDED.only_one_read,
			expires_at = EXCLUDED.expires_at
			WHERE text_records.expires_at <= now();
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.Key, nullable(rec.Body), nullable(rec.BlobRef), rec.Creator, rec.Size,
		nullable(rec.Summary), nullable(rec.PasswordHash), rec.OnlyOneRead, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrDuplicateKey
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// Get returns the live record under key, or ErrNotFound. Expired rows that
// the sweeper has not reached yet are treated as absent.
func (r *PostgresRepository) Get(ctx context.Context, key string) (*models.TextRecord, error) {
	query := `
		SELECT key, body, blob_ref, creator, size, summary, password_hash, only_one_read, expires_at
		FROM text_records
		WHERE key = $1 AND expires_at > now()
	`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select record: %w", err)
	}
	return rec, nil
}

// Replace swaps the row under rec.Key inside one transaction so the key is
// never observable as absent mid-update.
func (r *PostgresRepository) Replace(ctx context.Context, rec *models.TextRecord) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM text_records WHERE key = $1 AND expires_at > now()`, rec.Key)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected error: %w", err)
		}
		if n == 0 {
			return common.ErrNotFound
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO text_records (key, body, blob_ref, creator, size, summary, password_hash, only_one_read, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rec.Key, nullable(rec.Body), nullable(rec.BlobRef), rec.Creator, rec.Size,
			nullable(rec.Summary), nullable(rec.PasswordHash), rec.OnlyOneRead, rec.ExpiresAt)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

// Delete removes the record under key. Deleting an already-expired row
// still reports false: the record was not visible to anyone.
func (r *PostgresRepository) Delete(ctx context.Context, key string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM text_records WHERE key = $1 AND expires_at > now()`, key)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

// DeleteExpired removes up to limit expired rows and returns them so the
// caller can delete associated blobs.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) ([]*models.TextRecord, error) {
	query := `
		DELETE FROM text_records
		WHERE key IN (
			SELECT key FROM text_records
			WHERE expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
		)
		RETURNING key, blob_ref
	`
	rows, err := r.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired records: %w", err)
	}
	defer rows.Close()

	var result []*models.TextRecord
	for rows.Next() {
		var (
			item    models.TextRecord
			blobRef sql.NullString
		)
		if err := rows.Scan(&item.Key, &blobRef); err != nil {
			return nil, err
		}
		item.BlobRef = blobRef.String
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// scanRecord maps one text_records row onto the typed model, folding the
// nullable columns back into plain strings.
func scanRecord(row *sql.Row) (*models.TextRecord, error) {
	var (
		rec                              models.TextRecord
		body, blobRef, summary, passHash sql.NullString
	)
	err := row.Scan(&rec.Key, &body, &blobRef, &rec.Creator, &rec.Size, &summary, &passHash, &rec.OnlyOneRead, &rec.ExpiresAt)
	if err != nil {
		return nil, err
	}
	rec.Body = body.String
	rec.BlobRef = blobRef.String
	rec.Summary = summary.String
	rec.PasswordHash = passHash.String
	return &rec, nil
}

// nullable stores empty strings as SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

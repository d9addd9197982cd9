package records

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/dmitrijs2005/textshr/internal/common"
	"github.com/dmitrijs2005/textshr/internal/server/models"
)

var (
	bucketRecords       = []byte("records")
	bucketRecordsExpiry = []byte("records_expiry")
)

// BoltRepository implements record storage over an embedded bbolt database
// for single-binary deployments. Alongside the records bucket it maintains
// an expiry index bucket whose keys sort by expiry instant, so expired
// records are found without scanning everything.
type BoltRepository struct {
	db *bbolt.DB
}

var _ Repository = (*BoltRepository)(nil)

// NewBoltRepository binds a repository to db, creating its buckets.
func NewBoltRepository(db *bbolt.DB) (*BoltRepository, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketRecordsExpiry} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("records: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BoltRepository{db: db}, nil
}

// Create inserts the record unless a live one holds the key. bbolt update
// transactions are serialized, so the existence check and the write are a
// single atomic step; the create path cannot race with itself.
func (r *BoltRepository) Create(ctx context.Context, rec *models.TextRecord) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)

		if raw := b.Get([]byte(rec.Key)); raw != nil {
			old, err := decodeRecord(raw)
			if err != nil {
				return fmt.Errorf("records: decode existing %q: %w", rec.Key, err)
			}
			if !old.Expired(time.Now()) {
				return common.ErrDuplicateKey
			}
			// stale row under this key, evict it together with its index entry
			if err := tx.Bucket(bucketRecordsExpiry).Delete(expiryKey(old)); err != nil {
				return err
			}
		}

		return putRecord(tx, rec)
	})
}

// Get returns the live record under key.
func (r *BoltRepository) Get(ctx context.Context, key string) (*models.TextRecord, error) {
	var rec *models.TextRecord

	err := r.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketRecords).Get([]byte(key))
		if raw == nil {
			return common.ErrNotFound
		}
		decoded, err := decodeRecord(raw)
		if err != nil {
			return fmt.Errorf("records: decode %q: %w", key, err)
		}
		if decoded.Expired(time.Now()) {
			return common.ErrNotFound
		}
		rec = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Replace swaps the record under rec.Key within one update transaction.
func (r *BoltRepository) Replace(ctx context.Context, rec *models.TextRecord) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)

		raw := b.Get([]byte(rec.Key))
		if raw == nil {
			return common.ErrNotFound
		}
		old, err := decodeRecord(raw)
		if err != nil {
			return fmt.Errorf("records: decode existing %q: %w", rec.Key, err)
		}
		if old.Expired(time.Now()) {
			return common.ErrNotFound
		}

		if err := tx.Bucket(bucketRecordsExpiry).Delete(expiryKey(old)); err != nil {
			return err
		}
		return putRecord(tx, rec)
	})
}

// Delete removes the record under key; true when a live record was removed.
func (r *BoltRepository) Delete(ctx context.Context, key string) (bool, error) {
	var deleted bool

	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)

		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return fmt.Errorf("records: decode %q: %w", key, err)
		}

		if err := tx.Bucket(bucketRecordsExpiry).Delete(expiryKey(rec)); err != nil {
			return err
		}
		if err := b.Delete([]byte(key)); err != nil {
			return err
		}

		// removing an expired leftover is not a caller-visible delete
		deleted = !rec.Expired(time.Now())
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// DeleteExpired walks the expiry index from its start (oldest expiry first)
// and removes up to limit records expiring before the given instant.
func (r *BoltRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) ([]*models.TextRecord, error) {
	var result []*models.TextRecord

	err := r.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		expiry := tx.Bucket(bucketRecordsExpiry)

		cutoff := make([]byte, 8)
		binary.BigEndian.PutUint64(cutoff, uint64(before.UnixNano()))

		c := expiry.Cursor()
		for k, _ := c.First(); k != nil && len(result) < limit; k, _ = c.Next() {
			if len(k) < 8 || bytes.Compare(k[:8], cutoff) > 0 {
				break
			}
			key := string(k[8:])

			if raw := records.Get([]byte(key)); raw != nil {
				rec, err := decodeRecord(raw)
				if err != nil {
					return fmt.Errorf("records: decode %q: %w", key, err)
				}
				if err := records.Delete([]byte(key)); err != nil {
					return err
				}
				result = append(result, &models.TextRecord{Key: rec.Key, BlobRef: rec.BlobRef})
			}
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// putRecord stores the record and its expiry index entry.
func putRecord(tx *bbolt.Tx, rec *models.TextRecord) error {
	raw, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("records: encode %q: %w", rec.Key, err)
	}
	if err := tx.Bucket(bucketRecords).Put([]byte(rec.Key), raw); err != nil {
		return err
	}
	return tx.Bucket(bucketRecordsExpiry).Put(expiryKey(rec), nil)
}

// expiryKey encodes the expiry instant as an 8-byte big-endian prefix so
// index entries sort chronologically, followed by the record key to keep
// entries unique.
func expiryKey(rec *models.TextRecord) []byte {
	k := make([]byte, 8, 8+len(rec.Key))
	binary.BigEndian.PutUint64(k, uint64(rec.ExpiresAt.UnixNano()))
	return append(k, rec.Key...)
}

func encodeRecord(rec *models.TextRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(raw []byte) (*models.TextRecord, error) {
	rec := &models.TextRecord{}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

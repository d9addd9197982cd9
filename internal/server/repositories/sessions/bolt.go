package sessions

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/dmitrijs2005/textshr/internal/server/models"
)

var bucketSessions = []byte("sessions")

// BoltRepository implements session storage over an embedded bbolt
// database. Session volume is small, so expiry cleanup scans the bucket
// instead of keeping an ordered index.
type BoltRepository struct {
	db *bbolt.DB
}

var _ Repository = (*BoltRepository)(nil)

func NewBoltRepository(db *bbolt.DB) (*BoltRepository, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSessions); err != nil {
			return fmt.Errorf("sessions: create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BoltRepository{db: db}, nil
}

func (r *BoltRepository) Create(ctx context.Context, sess *models.Session) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		raw, err := encodeSession(sess)
		if err != nil {
			return fmt.Errorf("sessions: encode %q: %w", sess.ID, err)
		}
		return tx.Bucket(bucketSessions).Put([]byte(sess.ID), raw)
	})
}

func (r *BoltRepository) Refresh(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	var found bool

	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)

		raw := b.Get([]byte(id))
		if raw == nil {
			return nil
		}
		sess, err := decodeSession(raw)
		if err != nil {
			return fmt.Errorf("sessions: decode %q: %w", id, err)
		}
		if sess.Expired(time.Now()) {
			return nil
		}

		sess.ExpiresAt = expiresAt
		updated, err := encodeSession(sess)
		if err != nil {
			return fmt.Errorf("sessions: encode %q: %w", id, err)
		}
		if err := b.Put([]byte(id), updated); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (r *BoltRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var removed int64

	err := r.db.Update(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketSessions).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			sess, err := decodeSession(v)
			if err != nil {
				return fmt.Errorf("sessions: decode %q: %w", k, err)
			}
			if sess.ExpiresAt.After(before) {
				continue
			}
			if err := c.Delete(); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func encodeSession(sess *models.Session) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(sess); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSession(raw []byte) (*models.Session, error) {
	sess := &models.Session{}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Package services contains the application services: the storage engine
// orchestrating the record and blob stores, and the session service
// backing caller identity.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/textshr/internal/common"
	"github.com/dmitrijs2005/textshr/internal/logging"
	sc "github.com/dmitrijs2005/textshr/internal/server/config"
	"github.com/dmitrijs2005/textshr/internal/server/models"
	"github.com/dmitrijs2005/textshr/internal/server/passhash"
	"github.com/dmitrijs2005/textshr/internal/server/repositories/blobs"
	"github.com/dmitrijs2005/textshr/internal/server/repositories/records"
)

// KeyGenerator produces candidate record keys; tests substitute a stub to
// force collisions.
type KeyGenerator interface {
	Generate(ttl time.Duration) (string, error)
}

// CreateRequest carries the caller-supplied fields of a new record.
type CreateRequest struct {
	Text        string
	TTL         time.Duration
	OnlyOneRead bool
	Password    string
	Summary     string
}

// UpdateRequest carries the full replacement state for an existing record.
// An empty Password removes the gate, mirroring update-by-recreate
// semantics: every update supplies the complete new state.
type UpdateRequest struct {
	Text        string
	TTL         time.Duration
	OnlyOneRead bool
	Password    string
	Summary     string
}

// RecordContent is what a successful read returns.
type RecordContent struct {
	Text        string
	Size        int64
	Summary     string
	OnlyOneRead bool
}

// StorageService is the storage engine: it decides tiering, enforces
// ownership and one-time-read semantics and owns the collision-retry
// policy. It keeps no mutable state of its own; correctness under
// concurrency rests on the stores' atomic primitives.
type StorageService struct {
	records records.Repository
	blobs   blobs.Repository
	keygen  KeyGenerator
	logger  logging.Logger

	sizeThreshold int64
	maxTextBytes  int64
	keyAttempts   int
}

// NewStorageService wires the engine to its stores.
func NewStorageService(recs records.Repository, blobStore blobs.Repository, keygen KeyGenerator, logger logging.Logger, cfg *sc.Config) *StorageService {
	return &StorageService{
		records:       recs,
		blobs:         blobStore,
		keygen:        keygen,
		logger:        logger,
		sizeThreshold: cfg.SizeThreshold,
		maxTextBytes:  cfg.MaxTextBytes,
		keyAttempts:   cfg.KeyAttempts,
	}
}

// Create stores a new record and returns its key. Bodies above the size
// threshold go to the blob store; the record row then only carries the
// blob ref. Key collisions are retried a bounded number of times against
// the store's atomic create-if-absent; exhaustion is ErrKeyExhausted.
func (s *StorageService) Create(ctx context.Context, req *CreateRequest, creator string) (string, error) {
	if err := validateText(req.Text, s.maxTextBytes); err != nil {
		return "", err
	}
	if req.TTL <= 0 {
		return "", common.ErrInvalidTTL
	}

	rec := &models.TextRecord{
		Creator:     creator,
		Size:        int64(len(req.Text)),
		Summary:     req.Summary,
		OnlyOneRead: req.OnlyOneRead,
		ExpiresAt:   time.Now().Add(req.TTL),
	}

	if req.Password != "" {
		hash, err := passhash.Hash(req.Password)
		if err != nil {
			return "", fmt.Errorf("hash password: %w", err)
		}
		rec.PasswordHash = hash
	}

	// Blob first, so a record row never points at a body that is not
	// there yet. The blob ref is independent of the record key, which
	// keeps collision retries from re-uploading the body.
	if rec.Size > s.sizeThreshold {
		rec.BlobRef = randomBlobRef()
		if err := s.blobs.Put(ctx, rec.BlobRef, []byte(req.Text)); err != nil {
			return "", fmt.Errorf("create: store blob: %w", err)
		}
	} else {
		rec.Body = req.Text
	}

	for attempt := 0; attempt < s.keyAttempts; attempt++ {
		key, err := s.keygen.Generate(req.TTL)
		if err != nil {
			s.discardBlob(ctx, rec.BlobRef)
			return "", fmt.Errorf("create: generate key: %w", err)
		}

		rec.Key = key
		err = s.records.Create(ctx, rec)
		if err == nil {
			return key, nil
		}
		if errors.Is(err, common.ErrDuplicateKey) {
			s.logger.Debug(ctx, "key collision, retrying", "attempt", attempt+1)
			continue
		}
		s.discardBlob(ctx, rec.BlobRef)
		return "", fmt.Errorf("create: store record: %w", err)
	}

	s.discardBlob(ctx, rec.BlobRef)
	s.logger.Error(ctx, "key space exhausted", "attempts", s.keyAttempts, "ttl", req.TTL.String())
	return "", common.ErrKeyExhausted
}

// Get retrieves the record under key. Password-gated records yield
// ErrPasswordRequired without any body; the challenge happens in a second
// round-trip through Verify. A one-time record is consumed by the read.
func (s *StorageService) Get(ctx context.Context, key string) (*RecordContent, error) {
	rec, err := s.records.Get(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}

	if rec.PasswordHash != "" {
		return nil, common.ErrPasswordRequired
	}

	return s.redeem(ctx, rec)
}

// Verify performs a password-gated read. Absent key, passwordless record
// and wrong password all collapse to ErrNoMatch so the boundary cannot be
// used to enumerate keys.
func (s *StorageService) Verify(ctx context.Context, key, password string) (*RecordContent, error) {
	rec, err := s.records.Get(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNoMatch
		}
		return nil, fmt.Errorf("verify %q: %w", key, err)
	}

	if rec.PasswordHash == "" {
		// verifying against a passwordless record must not succeed
		s.logger.Debug(ctx, "verify against passwordless record", "key", key)
		return nil, common.ErrNoMatch
	}
	if !passhash.Verify(password, rec.PasswordHash) {
		s.logger.Debug(ctx, "password mismatch", "key", key)
		return nil, common.ErrNoMatch
	}

	content, err := s.redeem(ctx, rec)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// lost the one-time-read race after a correct password
			return nil, common.ErrNoMatch
		}
		return nil, err
	}
	return content, nil
}

// Update replaces the record under key with the full new state, re-tiering
// from scratch. Only the original creator may update; the creator itself
// is never rewritten.
func (s *StorageService) Update(ctx context.Context, key string, req *UpdateRequest, caller string) error {
	if err := validateText(req.Text, s.maxTextBytes); err != nil {
		return err
	}
	if req.TTL <= 0 {
		return common.ErrInvalidTTL
	}

	old, err := s.records.Get(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return fmt.Errorf("update %q: %w", key, err)
	}
	if old.Creator != caller {
		return common.ErrForbidden
	}

	rec := &models.TextRecord{
		Key:         key,
		Creator:     old.Creator,
		Size:        int64(len(req.Text)),
		Summary:     req.Summary,
		OnlyOneRead: req.OnlyOneRead,
		ExpiresAt:   time.Now().Add(req.TTL),
	}
	if req.Password != "" {
		hash, err := passhash.Hash(req.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		rec.PasswordHash = hash
	}

	if rec.Size > s.sizeThreshold {
		rec.BlobRef = randomBlobRef()
		if err := s.blobs.Put(ctx, rec.BlobRef, []byte(req.Text)); err != nil {
			return fmt.Errorf("update %q: store blob: %w", key, err)
		}
	} else {
		rec.Body = req.Text
	}

	if err := s.records.Replace(ctx, rec); err != nil {
		s.discardBlob(ctx, rec.BlobRef)
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return fmt.Errorf("update %q: replace record: %w", key, err)
	}

	// swap landed, the previous blob (if any) is now unreferenced
	if old.BlobRef != "" && old.BlobRef != rec.BlobRef {
		s.discardBlob(ctx, old.BlobRef)
	}
	return nil
}

// Delete removes the record under key after an ownership check.
func (s *StorageService) Delete(ctx context.Context, key, caller string) error {
	rec, err := s.records.Get(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return fmt.Errorf("delete %q: %w", key, err)
	}
	if rec.Creator != caller {
		return common.ErrForbidden
	}

	deleted, err := s.records.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	if !deleted {
		// someone else removed it between the ownership check and here
		return common.ErrNotFound
	}

	if rec.BlobRef != "" {
		s.discardBlob(ctx, rec.BlobRef)
	}
	return nil
}

// redeem assembles the record's content and, for one-time records, claims
// it with an atomic delete before returning the body. Concurrent readers
// of the same one-time record get at most one winner; losers see NotFound.
func (s *StorageService) redeem(ctx context.Context, rec *models.TextRecord) (*RecordContent, error) {
	text := rec.Body
	if !rec.Inline() {
		data, err := s.blobs.Get(ctx, rec.BlobRef)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				// metadata says the blob exists; its absence is a
				// consistency fault, not a missing record
				return nil, fmt.Errorf("record %q: blob %q vanished", rec.Key, rec.BlobRef)
			}
			return nil, fmt.Errorf("record %q: fetch blob: %w", rec.Key, err)
		}
		text = string(data)
	}

	if rec.OnlyOneRead {
		deleted, err := s.records.Delete(ctx, rec.Key)
		if err != nil {
			// attempted synchronously and failed: the caller still gets
			// the content, the leftover is caught by expiry
			s.logger.Error(ctx, "one-time record delete failed", "key", rec.Key, "error", err.Error())
		} else if !deleted {
			return nil, common.ErrNotFound
		} else if rec.BlobRef != "" {
			s.discardBlob(ctx, rec.BlobRef)
		}
	}

	return &RecordContent{
		Text:        text,
		Size:        rec.Size,
		Summary:     rec.Summary,
		OnlyOneRead: rec.OnlyOneRead,
	}, nil
}

// discardBlob deletes a blob best-effort; failures are logged and the
// orphan is left for manual cleanup.
func (s *StorageService) discardBlob(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if _, err := s.blobs.Delete(ctx, ref); err != nil {
		s.logger.Warn(ctx, "blob cleanup failed", "ref", ref, "error", err.Error())
	}
}

func validateText(text string, maxBytes int64) error {
	if text == "" {
		return common.ErrEmptyText
	}
	if int64(len(text)) > maxBytes {
		return common.ErrTextTooLarge
	}
	return nil
}

// randomBlobRef builds a date-bucketed object key for a large body.
func randomBlobRef() string {
	d := time.Now()
	return fmt.Sprintf("texts/%d/%02d/%02d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

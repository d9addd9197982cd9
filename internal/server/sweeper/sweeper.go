// Package sweeper removes expired records and sessions in the background.
// Expired rows are already invisible to reads, so sweeping only reclaims
// space; it never affects correctness.
package sweeper

import (
	"context"
	"time"

	"github.com/dmitrijs2005/textshr/internal/logging"
	"github.com/dmitrijs2005/textshr/internal/server/repositories/blobs"
	"github.com/dmitrijs2005/textshr/internal/server/repositories/records"
	"github.com/dmitrijs2005/textshr/internal/server/repositories/sessions"
)

// batchLimit bounds one DeleteExpired round so a large backlog cannot
// hold a long transaction open.
const batchLimit = 500

// Sweeper periodically deletes expired records (with their blobs) and
// expired sessions.
type Sweeper struct {
	records  records.Repository
	blobs    blobs.Repository
	sessions sessions.Repository
	logger   logging.Logger
	interval time.Duration
}

func New(recs records.Repository, blobStore blobs.Repository, sess sessions.Repository, logger logging.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		records:  recs,
		blobs:    blobStore,
		sessions: sess,
		logger:   logger.With("component", "sweeper"),
		interval: interval,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "sweeper started", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass. Exported so an operator endpoint or test can
// trigger it outside the ticker.
func (s *Sweeper) Sweep(ctx context.Context) {
	var swept int
	for {
		removed, err := s.records.DeleteExpired(ctx, time.Now(), batchLimit)
		if err != nil {
			s.logger.Error(ctx, "expired record sweep failed", "error", err.Error())
			break
		}

		for _, rec := range removed {
			if rec.BlobRef == "" {
				continue
			}
			if _, err := s.blobs.Delete(ctx, rec.BlobRef); err != nil {
				s.logger.Warn(ctx, "expired blob cleanup failed", "ref", rec.BlobRef, "error", err.Error())
			}
		}

		swept += len(removed)
		if len(removed) < batchLimit {
			break
		}
	}

	n, err := s.sessions.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error(ctx, "expired session sweep failed", "error", err.Error())
	}

	if swept > 0 || n > 0 {
		s.logger.Info(ctx, "sweep finished", "records", swept, "sessions", n)
	}
}

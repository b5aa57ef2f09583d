package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/screenloom/backend/internal/metrics"
	"github.com/screenloom/backend/internal/recordings"
	"github.com/screenloom/backend/pkg/storage"
)

// Sweeper reclaims orphaned blobs: files in the recordings directory that no
// index row references. Orphans appear when a row is removed but its blob
// deletion fails, since delete is best-effort by design. Blobs younger than
// the grace period are skipped so an upload racing the sweep is never
// deleted mid-create.
type Sweeper struct {
	store    *recordings.Store
	blobs    *storage.Disk
	interval time.Duration
	grace    time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewSweeper creates an orphan-blob sweeper.
func NewSweeper(store *recordings.Store, blobs *storage.Disk, interval, grace time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		store:    store,
		blobs:    blobs,
		interval: interval,
		grace:    grace,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source used for the grace-period check.
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			removed, err := s.SweepOnce()
			if err != nil {
				s.logger.Warn("sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				s.logger.Info("swept orphaned blobs", zap.Int("removed", removed))
			}
		}
	}
}

// SweepOnce removes every unreferenced blob older than the grace period and
// returns how many were removed.
func (s *Sweeper) SweepOnce() (int, error) {
	entries, err := s.blobs.Entries()
	if err != nil {
		return 0, err
	}
	refs := s.store.ReferencedFilenames()
	cutoff := s.now().Add(-s.grace)

	removed := 0
	for _, e := range entries {
		if _, ok := refs[e.Name]; ok {
			continue
		}
		if e.ModTime.After(cutoff) {
			continue
		}
		if err := s.blobs.Delete(e.Name); err != nil {
			s.logger.Warn("delete orphan blob failed", zap.String("filename", e.Name), zap.Error(err))
			continue
		}
		metrics.OrphanBlobsSwept.Inc()
		removed++
	}
	return removed, nil
}

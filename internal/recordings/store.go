// Package recordings owns the server-side recording index and its HTTP surface.
package recordings

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/screenloom/backend/internal/metrics"
	"github.com/screenloom/backend/internal/models"
	"github.com/screenloom/backend/pkg/storage"
)

// BlobStore is the backing byte-blob store, one blob per recording.
type BlobStore interface {
	Save(filename string, data []byte) error
	Read(filename string) ([]byte, error)
	Delete(filename string) error
}

// Store is the in-memory recording index: id -> metadata row, plus the blob
// store holding the bytes. Process-local and non-persistent; rows are lost on
// restart. IDs are assigned from a monotonic counter and never reused.
type Store struct {
	mu         sync.RWMutex
	recordings map[int]models.Recording
	nextID     int

	blobs    BlobStore
	capacity int64
	now      func() time.Time
	logger   *zap.Logger
}

// NewStore creates a recording store over the given blob store. capacity is
// the fixed total reported by Stats.
func NewStore(blobs BlobStore, capacity int64, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		recordings: make(map[int]models.Recording),
		nextID:     1,
		blobs:      blobs,
		capacity:   capacity,
		now:        time.Now,
		logger:     logger,
	}
}

// SetClock overrides the time source used for timestamps and filenames.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// List returns all recordings, newest-created first.
func (s *Store) List() []models.Recording {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Recording, 0, len(s.recordings))
	for _, rec := range s.recordings {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Get returns the recording with the given id.
func (s *Store) Get(id int) (models.Recording, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recordings[id]
	return rec, ok
}

// Create writes data to the blob store under a generated filename, then
// inserts a metadata row. The stored fileSize is the length of data; any
// client-supplied size is ignored. No row is created when the blob write
// fails.
func (s *Store) Create(meta models.ClientMetadata, data []byte) (models.Recording, error) {
	now := s.now()
	filename := storage.GenerateFilename(now, meta.Filename, "."+string(meta.Format))

	if err := s.blobs.Save(filename, data); err != nil {
		metrics.UploadErrors.Inc()
		return models.Recording{}, fmt.Errorf("save recording blob: %w", err)
	}

	hasAudio := true
	if meta.HasAudio != nil {
		hasAudio = *meta.HasAudio
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	rec := models.Recording{
		ID:        id,
		Title:     meta.Title,
		Filename:  filename,
		FileSize:  int64(len(data)),
		Duration:  meta.Duration,
		Format:    meta.Format,
		HasAudio:  hasAudio,
		CreatedAt: now,
	}
	s.recordings[id] = rec
	used := s.usedLocked()
	s.mu.Unlock()

	metrics.RecordingsCreated.Inc()
	metrics.BytesStored.Set(float64(used))
	return rec, nil
}

// Delete removes the recording's blob (best-effort) and its row. Returns
// false when the id is unknown. A blob deletion failure does not block row
// removal; the orphan sweeper reclaims the blob later.
func (s *Store) Delete(id int) bool {
	s.mu.Lock()
	rec, ok := s.recordings[id]
	s.mu.Unlock()
	if !ok {
		return false
	}

	if err := s.blobs.Delete(rec.Filename); err != nil {
		s.logger.Warn("delete recording blob failed",
			zap.Int("id", id),
			zap.String("filename", rec.Filename),
			zap.Error(err),
		)
	}

	s.mu.Lock()
	if _, ok := s.recordings[id]; !ok {
		// Lost a race with a concurrent delete of the same id.
		s.mu.Unlock()
		return false
	}
	delete(s.recordings, id)
	used := s.usedLocked()
	s.mu.Unlock()

	metrics.RecordingsDeleted.Inc()
	metrics.BytesStored.Set(float64(used))
	return true
}

// ReadBlob returns the stored bytes for filename.
func (s *Store) ReadBlob(filename string) ([]byte, error) {
	return s.blobs.Read(filename)
}

// Stats returns the aggregate used/total byte accounting. used is the sum of
// fileSize across all current rows.
func (s *Store) Stats() models.StorageStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.StorageStats{Used: s.usedLocked(), Total: s.capacity}
}

// ReferencedFilenames returns the blob names currently referenced by rows.
func (s *Store) ReferencedFilenames() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make(map[string]struct{}, len(s.recordings))
	for _, rec := range s.recordings {
		refs[rec.Filename] = struct{}{}
	}
	return refs
}

func (s *Store) usedLocked() int64 {
	var used int64
	for _, rec := range s.recordings {
		used += rec.FileSize
	}
	return used
}

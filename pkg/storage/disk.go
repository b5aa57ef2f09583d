// Package storage provides the flat-file blob store backing recordings:
// one file per recording, named by a server-generated unique filename.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ricochet2200/go-disk-usage/du"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a blob does not exist on the backing store.
var ErrNotFound = errors.New("blob not found")

// BlobInfo describes one stored blob.
type BlobInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Disk stores blobs as files in a single directory.
type Disk struct {
	dir    string
	logger *zap.Logger
}

// NewDisk creates a disk blob store rooted at dir, creating it if needed.
func NewDisk(dir string, logger *zap.Logger) (*Disk, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}
	return &Disk{dir: dir, logger: logger}, nil
}

// Dir returns the backing directory.
func (d *Disk) Dir() string { return d.dir }

// Save writes data under filename. The filename must be a bare name with no
// path components.
func (d *Disk) Save(filename string, data []byte) error {
	path, err := d.path(filename)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	return nil
}

// Read returns the bytes stored under filename, or ErrNotFound.
func (d *Disk) Read(filename string) ([]byte, error) {
	path, err := d.path(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Delete removes the blob stored under filename, or returns ErrNotFound.
func (d *Disk) Delete(filename string) error {
	path, err := d.path(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// Entries lists all stored blobs with size and modification time.
func (d *Disk) Entries() ([]BlobInfo, error) {
	files, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read recordings dir: %w", err)
	}
	var out []BlobInfo
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		out = append(out, BlobInfo{Name: f.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return out, nil
}

// path validates filename and joins it with the store directory. Names with
// path separators or leading dots are rejected so a client-influenced name
// can never escape the directory.
func (d *Disk) path(filename string) (string, error) {
	if filename == "" || filepath.Base(filename) != filename || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("invalid blob filename %q", filename)
	}
	return filepath.Join(d.dir, filename), nil
}

// GenerateFilename builds a collision-resistant blob name from the current
// time plus a random suffix, keeping the extension of the client's hint.
// The display title never reaches the filesystem.
func GenerateFilename(now time.Time, hint string, fallbackExt string) string {
	ext := strings.ToLower(filepath.Ext(hint))
	if !validExt(ext) {
		ext = fallbackExt
	}
	return fmt.Sprintf("recording_%d_%s%s", now.UnixMilli(), uuid.NewString()[:8], ext)
}

func validExt(ext string) bool {
	if len(ext) < 2 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// DiskCapacity returns the total size of the volume holding dir, used when
// no explicit storage capacity is configured.
func DiskCapacity(dir string) int64 {
	usage := du.NewDiskUsage(dir)
	if usage == nil {
		return 0
	}
	return int64(usage.Size())
}

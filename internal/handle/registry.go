// Package handle materializes fetched page images as local spool files and
// tracks their release. A handle is only ever created and released through a
// Slot, which owns at most one live handle at a time.
package handle

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/dharsanguruparan/ShelfView/internal/metrics"
)

// Handle is a read-only view of a materialized resource. Holding a Handle
// grants no way to release it.
type Handle struct {
	ID          string
	Ref         string
	Size        int64
	ContentType string
	CreatedAt   time.Time
}

// Stats counts handle lifecycle events.
type Stats struct {
	Acquired int64
	Released int64
}

// Live is the number of handles acquired and not yet released.
func (s Stats) Live() int64 {
	return s.Acquired - s.Released
}

// Registry creates spool files for handles under dir on fs.
type Registry struct {
	fs       afero.Fs
	dir      string
	acquired atomic.Int64
	released atomic.Int64
}

// NewRegistry prepares the spool directory.
func NewRegistry(fs afero.Fs, dir string) (*Registry, error) {
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &Registry{fs: fs, dir: dir}, nil
}

// Stats returns a snapshot of the acquire/release counters.
func (r *Registry) Stats() Stats {
	// Released is read first so Live never goes negative under concurrent use.
	released := r.released.Load()
	return Stats{Acquired: r.acquired.Load(), Released: released}
}

// NewSlot returns an empty slot backed by r.
func (r *Registry) NewSlot() *Slot {
	return &Slot{reg: r}
}

func (r *Registry) acquire(data []byte, contentType string) (*Handle, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("acquire handle: empty payload")
	}
	detected := mimetype.Detect(data)
	if contentType == "" {
		contentType = detected.String()
	}
	id := uuid.NewString()
	path := filepath.Join(r.dir, id+detected.Extension())
	if err := afero.WriteFile(r.fs, path, data, 0o640); err != nil {
		_ = r.fs.Remove(path)
		return nil, fmt.Errorf("write spool file: %w", err)
	}
	r.acquired.Add(1)
	metrics.LiveHandles.Inc()
	return &Handle{
		ID:          id,
		Ref:         path,
		Size:        int64(len(data)),
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (r *Registry) release(h *Handle) error {
	r.released.Add(1)
	metrics.LiveHandles.Dec()
	if err := r.fs.Remove(h.Ref); err != nil {
		return fmt.Errorf("remove spool file %s: %w", h.ID, err)
	}
	return nil
}

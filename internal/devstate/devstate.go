// Package devstate holds the editor server's live working set: mutable
// in-memory copies of assets under edit.
//
// The working set is owned exclusively by the component that populates it.
// Entries idle beyond a fixed TTL are evicted on an interval, and dirty
// entries are written back to disk opportunistically on the same interval
// rather than on every mutation, so a burst of edits coalesces into one
// disk write. Flush is also invoked directly when a RESTART asks the
// process to persist everything before exiting.
package devstate

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/assetforge/assetforge/internal/logging"
)

type entry struct {
	data       []byte
	path       string
	dirty      bool
	lastAccess time.Time
}

// DevState is the per-unit working-set cache.
type DevState struct {
	entries       map[string]*entry
	ttl           time.Duration
	flushInterval time.Duration
	logger        logging.Logger
	mutex         sync.Mutex
}

// New creates a working set with the given idle TTL and flush interval.
func New(ttl, flushInterval time.Duration, logger logging.Logger) *DevState {
	if logger == nil {
		logger = logging.Nop()
	}
	return &DevState{
		entries:       make(map[string]*entry),
		ttl:           ttl,
		flushInterval: flushInterval,
		logger:        logger.WithScope("devstate"),
	}
}

// Start runs the eviction and write-back ticker until ctx is cancelled.
func (ds *DevState) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(ds.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ds.sweep()
			}
		}
	}()
}

// Load returns the working copy for key, reading it from path on first
// access.
func (ds *DevState) Load(key, path string) ([]byte, error) {
	ds.mutex.Lock()
	if e, ok := ds.entries[key]; ok {
		e.lastAccess = time.Now()
		data := e.data
		ds.mutex.Unlock()
		return data, nil
	}
	ds.mutex.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ds.mutex.Lock()
	ds.entries[key] = &entry{data: data, path: path, lastAccess: time.Now()}
	ds.mutex.Unlock()
	return data, nil
}

// Put replaces the working copy for key and marks it dirty. The write to
// path happens on the next sweep or Flush, not synchronously.
func (ds *DevState) Put(key, path string, data []byte) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()
	ds.entries[key] = &entry{
		data:       data,
		path:       path,
		dirty:      true,
		lastAccess: time.Now(),
	}
}

// Get returns the cached working copy without touching disk.
func (ds *DevState) Get(key string) ([]byte, bool) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()
	e, ok := ds.entries[key]
	if !ok {
		return nil, false
	}
	e.lastAccess = time.Now()
	return e.data, true
}

// Len returns the number of resident entries.
func (ds *DevState) Len() int {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()
	return len(ds.entries)
}

// Flush writes every dirty entry back to disk. Called on RESTART so the
// instance can persist before exiting.
func (ds *DevState) Flush() error {
	ds.mutex.Lock()
	dirty := make(map[string]*entry)
	for key, e := range ds.entries {
		if e.dirty {
			dirty[key] = e
		}
	}
	ds.mutex.Unlock()

	var firstErr error
	for key, e := range dirty {
		if err := writeFile(e.path, e.data); err != nil {
			ds.logger.Error(err, "writing working copy", "unit", key)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ds.mutex.Lock()
		if cur, ok := ds.entries[key]; ok && sameBytes(cur.data, e.data) {
			cur.dirty = false
		}
		ds.mutex.Unlock()
	}
	return firstErr
}

// sweep flushes dirty entries and evicts anything idle beyond the TTL.
func (ds *DevState) sweep() {
	if err := ds.Flush(); err != nil {
		ds.logger.Warn(err, "opportunistic write-back incomplete")
	}

	cutoff := time.Now().Add(-ds.ttl)
	ds.mutex.Lock()
	for key, e := range ds.entries {
		if !e.dirty && e.lastAccess.Before(cutoff) {
			delete(ds.entries, key)
		}
	}
	ds.mutex.Unlock()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func sameBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

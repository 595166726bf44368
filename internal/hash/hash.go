// Package hash provides content hashing for cache-busting URLs and the
// mtime staleness heuristic used to decide initial rebuilds.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
)

// File streams the bytes of the file at path through SHA-256 and returns the
// hex digest. A file that cannot be opened hashes to the empty string, a
// valid "absent" sentinel distinct from any real digest, so callers can treat
// unhashable uniformly as missing.
func File(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// VersionedURL returns urlPath with the content hash appended as a
// cache-busting query string. Unchanged files keep stable URLs; changed
// files invalidate client caches.
func VersionedURL(urlPath, digest string) string {
	if digest == "" {
		return urlPath
	}
	return fmt.Sprintf("%s?v=%s", urlPath, digest)
}

// Stale reports whether the artifact at dest needs rebuilding from src.
// A missing artifact, or one older than the source, is stale. This is an
// mtime approximation used only for watch-bootstrap rebuild decisions;
// content hashes are what end up in emitted URLs.
func Stale(src, dest string) bool {
	srcInfo, err := os.Stat(src)
	if err != nil {
		// Missing source means nothing to rebuild from.
		return false
	}
	destInfo, err := os.Stat(dest)
	if err != nil {
		return true
	}
	return srcInfo.ModTime().After(destInfo.ModTime())
}

// Hasher caches digests per run so that repeated lookups of the same path
// avoid re-reading the file. The cache is rebuilt from disk state each run
// and never persisted.
type Hasher struct {
	entries map[string]string
	mutex   sync.RWMutex
}

// NewHasher creates a per-run content hasher.
func NewHasher() *Hasher {
	return &Hasher{
		entries: make(map[string]string),
	}
}

// Hash returns the cached digest for path, computing and caching it on the
// first lookup. The empty-string sentinel for missing files is cached too.
func (h *Hasher) Hash(path string) string {
	h.mutex.RLock()
	digest, ok := h.entries[path]
	h.mutex.RUnlock()
	if ok {
		return digest
	}

	digest = File(path)

	h.mutex.Lock()
	h.entries[path] = digest
	h.mutex.Unlock()
	return digest
}

// Invalidate drops the cached digest for path, forcing a re-read on the
// next Hash call. Watch handlers call this when a file changes.
func (h *Hasher) Invalidate(path string) {
	h.mutex.Lock()
	delete(h.entries, path)
	h.mutex.Unlock()
}

// Len returns the number of cached entries.
func (h *Hasher) Len() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.entries)
}

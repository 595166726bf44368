package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetforge/assetforge/internal/logging"
)

const debounce = 50 * time.Millisecond

// batchRecorder collects delivered batches for assertions.
type batchRecorder struct {
	mutex   sync.Mutex
	batches [][]Event
}

func (r *batchRecorder) handle(events []Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.batches = append(r.batches, events)
}

func (r *batchRecorder) count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.batches)
}

func (r *batchRecorder) all() [][]Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([][]Event, len(r.batches))
	copy(out, r.batches)
	return out
}

func (r *batchRecorder) waitForBatch(t *testing.T) []Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r.mutex.Lock()
		if len(r.batches) > 0 {
			batch := r.batches[0]
			r.mutex.Unlock()
			return batch
		}
		r.mutex.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no batch delivered before deadline")
	return nil
}

func startWatcher(t *testing.T, root string, opts *SubscribeOptions) (*FileWatcher, *batchRecorder) {
	t.Helper()
	fw, err := New(debounce, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { fw.Stop() })

	rec := &batchRecorder{}
	_, err = fw.Subscribe(root, rec.handle, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	fw.Start(ctx)
	return fw, rec
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "create", EventTypeCreate.String())
	assert.Equal(t, "update", EventTypeUpdate.String())
	assert.Equal(t, "delete", EventTypeDelete.String())
	assert.Equal(t, "unknown", EventType(99).String())
}

func TestWatcherDeliversCreate(t *testing.T) {
	root := t.TempDir()
	_, rec := startWatcher(t, root, nil)

	path := filepath.Join(root, "frame1.png")
	require.NoError(t, os.WriteFile(path, []byte("pixels"), 0o644))

	batch := rec.waitForBatch(t)
	require.Len(t, batch, 1)
	assert.Equal(t, EventTypeCreate, batch[0].Type)
	assert.Equal(t, path, batch[0].Path)
}

func TestWatcherCoalescesBurstIntoOneBatch(t *testing.T) {
	// Two changes inside one debounce window must arrive as a single
	// batch, so a sheet repacks once rather than per file.
	root := t.TempDir()
	frame1 := filepath.Join(root, "frame1.png")
	require.NoError(t, os.WriteFile(frame1, []byte("v1"), 0o644))

	_, rec := startWatcher(t, root, nil)

	require.NoError(t, os.WriteFile(filepath.Join(root, "frame2.png"), []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(frame1, []byte("v2"), 0o644))

	batch := rec.waitForBatch(t)
	paths := make(map[string]EventType, len(batch))
	for _, ev := range batch {
		paths[filepath.Base(ev.Path)] = ev.Type
	}
	assert.Contains(t, paths, "frame2.png")
	assert.Contains(t, paths, "frame1.png")

	// Quiet period: no second batch for the same burst.
	time.Sleep(4 * debounce)
	assert.Equal(t, 1, rec.count())
}

func TestWatcherDeduplicatesSamePath(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "hero.glsl")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	_, rec := startWatcher(t, root, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0o644))
		time.Sleep(2 * time.Millisecond)
	}

	batch := rec.waitForBatch(t)
	assert.Len(t, batch, 1, "rapid edits to one file collapse to one event")
}

func TestWatcherIgnoreGlobs(t *testing.T) {
	root := t.TempDir()
	_, rec := startWatcher(t, root, &SubscribeOptions{Ignore: []string{"*.swp", ".*"}})

	require.NoError(t, os.WriteFile(filepath.Join(root, "map.json.swp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "map.json"), []byte("x"), 0o644))

	batch := rec.waitForBatch(t)
	require.Len(t, batch, 1)
	assert.Equal(t, "map.json", filepath.Base(batch[0].Path))
}

func TestWatcherDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "old.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, rec := startWatcher(t, root, nil)
	require.NoError(t, os.Remove(path))

	batch := rec.waitForBatch(t)
	require.Len(t, batch, 1)
	assert.Equal(t, EventTypeDelete, batch[0].Type)
}

func TestWatcherSeesNewSubdirectory(t *testing.T) {
	root := t.TempDir()
	_, rec := startWatcher(t, root, nil)

	sub := filepath.Join(root, "sheet")
	require.NoError(t, os.Mkdir(sub, 0o755))
	rec.waitForBatch(t)

	// Files created inside the new directory must be observed too.
	require.NoError(t, os.WriteFile(filepath.Join(sub, "frame.png"), []byte("x"), 0o644))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, batch := range rec.all() {
			for _, ev := range batch {
				if filepath.Base(ev.Path) == "frame.png" {
					return
				}
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("file inside new directory never observed")
}

func TestWatcherMultipleSubscriptions(t *testing.T) {
	fw, err := New(debounce, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { fw.Stop() })

	rootA := t.TempDir()
	rootB := t.TempDir()
	recA := &batchRecorder{}
	recB := &batchRecorder{}
	_, err = fw.Subscribe(rootA, recA.handle, nil)
	require.NoError(t, err)
	_, err = fw.Subscribe(rootB, recB.handle, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	fw.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(rootA, "a.png"), []byte("x"), 0o644))

	batch := recA.waitForBatch(t)
	assert.Len(t, batch, 1)

	time.Sleep(4 * debounce)
	assert.Zero(t, recB.count(), "unrelated subscription stays silent")
}

func TestWatcherCancel(t *testing.T) {
	fw, err := New(debounce, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { fw.Stop() })

	root := t.TempDir()
	rec := &batchRecorder{}
	sub, err := fw.Subscribe(root, rec.handle, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	fw.Start(ctx)

	fw.Cancel(sub)
	require.NoError(t, os.WriteFile(filepath.Join(root, "late.png"), []byte("x"), 0o644))

	time.Sleep(4 * debounce)
	assert.Zero(t, rec.count())
}

package devstate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetforge/assetforge/internal/logging"
)

func TestLoadReadsFromDiskOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dungeon.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tiles":[]}`), 0o644))

	ds := New(time.Minute, time.Minute, logging.Nop())

	data, err := ds.Load("dungeon", path)
	require.NoError(t, err)
	assert.Equal(t, `{"tiles":[]}`, string(data))

	// A later disk change is invisible: the working copy is authoritative.
	require.NoError(t, os.WriteFile(path, []byte(`changed`), 0o644))
	data, err = ds.Load("dungeon", path)
	require.NoError(t, err)
	assert.Equal(t, `{"tiles":[]}`, string(data))
}

func TestLoadMissingFile(t *testing.T) {
	ds := New(time.Minute, time.Minute, logging.Nop())
	_, err := ds.Load("absent", filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestPutThenGet(t *testing.T) {
	ds := New(time.Minute, time.Minute, logging.Nop())
	ds.Put("dungeon", filepath.Join(t.TempDir(), "dungeon.json"), []byte("v2"))

	data, ok := ds.Get("dungeon")
	require.True(t, ok)
	assert.Equal(t, "v2", string(data))

	_, ok = ds.Get("forest")
	assert.False(t, ok)
}

func TestPutDoesNotWriteSynchronously(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dungeon.json")
	ds := New(time.Minute, time.Minute, logging.Nop())

	ds.Put("dungeon", path, []byte("v2"))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "write-back is deferred until flush")
}

func TestFlushWritesDirtyEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maps", "dungeon.json")
	ds := New(time.Minute, time.Minute, logging.Nop())

	ds.Put("dungeon", path, []byte("v2"))
	require.NoError(t, ds.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	// A second flush with nothing new leaves the file alone.
	require.NoError(t, os.WriteFile(path, []byte("external"), 0o644))
	require.NoError(t, ds.Flush())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "external", string(data), "clean entries are not rewritten")
}

func TestSweepEvictsIdleCleanEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dungeon.json")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	ds := New(10*time.Millisecond, time.Minute, logging.Nop())
	_, err := ds.Load("dungeon", path)
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())

	time.Sleep(30 * time.Millisecond)
	ds.sweep()

	assert.Zero(t, ds.Len(), "idle clean entry evicted after TTL")
}

func TestSweepWritesBackDirtyBeforeEviction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dungeon.json")

	ds := New(10*time.Millisecond, time.Minute, logging.Nop())
	ds.Put("dungeon", path, []byte("edited"))

	time.Sleep(30 * time.Millisecond)
	ds.sweep()

	// The sweep flushed the dirty entry, so eviction is safe on the next
	// pass and the bytes are on disk.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "edited", string(data))
}

func TestRecentEntriesSurviveSweep(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dungeon.json")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	ds := New(time.Hour, time.Minute, logging.Nop())
	_, err := ds.Load("dungeon", path)
	require.NoError(t, err)

	ds.sweep()
	assert.Equal(t, 1, ds.Len())
}

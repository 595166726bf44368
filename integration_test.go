package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	forgeerrors "github.com/assetforge/assetforge/internal/errors"
	"github.com/assetforge/assetforge/internal/logging"
	"github.com/assetforge/assetforge/internal/orchestrator"
	"github.com/assetforge/assetforge/internal/plugin"
	"github.com/assetforge/assetforge/internal/plugins/builtin"
	"github.com/assetforge/assetforge/internal/protocol"
	"github.com/assetforge/assetforge/internal/registry"
	"github.com/assetforge/assetforge/internal/watcher"
)

// scaffoldGame lays out a small but complete game project on disk.
func scaffoldGame(t *testing.T) plugin.Paths {
	t.Helper()
	gameRoot := t.TempDir()
	paths := plugin.Paths{
		GameRoot:   gameRoot,
		AssetRoot:  filepath.Join(gameRoot, "assets"),
		BuildRoot:  filepath.Join(gameRoot, ".assetforge", "build"),
		OutputRoot: filepath.Join(gameRoot, "dist"),
	}

	write := func(rel string, data string) {
		path := filepath.Join(paths.AssetRoot, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	}

	write(filepath.Join("static", "logo.png"), "logo pixels")
	write(filepath.Join("sprites", "heroes", "idle.png"), "idle frame")
	write(filepath.Join("sprites", "heroes", "run.png"), "run frame")
	write(filepath.Join("shaders", "water.frag"), "// water\nvoid main() {}\n")
	write(filepath.Join("maps", "dungeon.json"), `{"tiles": [[0]], "sheet": "heroes"}`)
	return paths
}

func activePlugins(t *testing.T) []plugin.Plugin {
	t.Helper()
	r := registry.New()
	require.NoError(t, builtin.Register(r))
	return r.Instantiate(nil, true)
}

func TestIntegration_FullBuildPipeline(t *testing.T) {
	paths := scaffoldGame(t)

	bctx := plugin.NewBuildContext(paths, logging.Nop(), nil)
	bctx.Build = true

	collector := forgeerrors.NewCollector()
	orch := orchestrator.New(activePlugins(t), collector, logging.Nop())
	require.NoError(t, orch.Run(bctx, nil))
	require.False(t, collector.HasErrors(), "errors: %v", collector.Errors())

	// Every plugin produced its artifact.
	assert.FileExists(t, paths.Output("static", "logo.png"))
	assert.FileExists(t, paths.Output("sprites", "heroes.sheet.json"))
	assert.FileExists(t, paths.Output("shaders", "water.frag"))
	assert.FileExists(t, paths.Output("maps", "dungeon.json"))
	assert.FileExists(t, paths.Output("assets.css"))

	// The sheet artifact carries both frames with content hashes.
	data, err := os.ReadFile(paths.Output("sprites", "heroes.sheet.json"))
	require.NoError(t, err)
	var sheet struct {
		Frames []struct {
			File string `json:"file"`
			Hash string `json:"hash"`
		} `json:"frames"`
	}
	require.NoError(t, json.Unmarshal(data, &sheet))
	require.Len(t, sheet.Frames, 2)
	assert.NotEmpty(t, sheet.Frames[0].Hash)

	// The stylesheet references the cache-busted static URL.
	css, err := os.ReadFile(paths.Output("assets.css"))
	require.NoError(t, err)
	assert.Contains(t, string(css), "/static/logo.png?v=")
}

func TestIntegration_PartialFailureBuildsTheRest(t *testing.T) {
	paths := scaffoldGame(t)

	// Poison the map so the maps plugin fails while everything else builds.
	mapPath := filepath.Join(paths.AssetRoot, "maps", "dungeon.json")
	require.NoError(t, os.WriteFile(mapPath, []byte(`{broken`), 0o644))

	bctx := plugin.NewBuildContext(paths, logging.Nop(), nil)
	bctx.Build = true

	collector := forgeerrors.NewCollector()
	orch := orchestrator.New(activePlugins(t), collector, logging.Nop())
	require.NoError(t, orch.Run(bctx, nil))

	assert.Equal(t, 1, collector.Count())
	require.Len(t, collector.ByPlugin("maps"), 1)

	assert.FileExists(t, paths.Output("static", "logo.png"))
	assert.FileExists(t, paths.Output("sprites", "heroes.sheet.json"))
	assert.FileExists(t, paths.Output("assets.css"))
}

func TestIntegration_WatchRebuildEmitsReloadEvents(t *testing.T) {
	paths := scaffoldGame(t)

	var emitted []protocol.Mutation
	bctx := plugin.NewBuildContext(paths, logging.Nop(), func(m protocol.Mutation) {
		emitted = append(emitted, m)
	})
	bctx.Build = true
	bctx.Watch = true

	// Capture each plugin's watch handler instead of running a real
	// filesystem watcher.
	handlers := make(map[string]watcher.BatchHandler)
	subscribe := func(root string, handler watcher.BatchHandler, opts *watcher.SubscribeOptions) (*watcher.Subscription, error) {
		handlers[root] = handler
		return nil, nil
	}

	collector := forgeerrors.NewCollector()
	orch := orchestrator.New(activePlugins(t), collector, logging.Nop())
	require.NoError(t, orch.Run(bctx, subscribe))
	require.False(t, collector.HasErrors())

	// One coalesced batch touching the heroes sheet: a new frame plus an
	// edited one.
	sheetDir := filepath.Join(paths.AssetRoot, "sprites", "heroes")
	newFrame := filepath.Join(sheetDir, "jump.png")
	require.NoError(t, os.WriteFile(newFrame, []byte("jump frame"), 0o644))

	handler := handlers[filepath.Join(paths.AssetRoot, "sprites")]
	require.NotNil(t, handler)
	handler([]watcher.Event{
		{Type: watcher.EventTypeCreate, Path: newFrame},
		{Type: watcher.EventTypeUpdate, Path: filepath.Join(sheetDir, "idle.png")},
	})

	require.Len(t, emitted, 1, "one batch, one sheet, one reload")
	assert.Equal(t, protocol.TypeReloadSpriteSheet, emitted[0].Type)
	assert.Equal(t, "heroes", emitted[0].String("spriteSheet"))

	data, err := os.ReadFile(paths.Output("sprites", "heroes.sheet.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "jump.png")
}

func TestIntegration_ProductionFlipForcesFullRebuild(t *testing.T) {
	paths := scaffoldGame(t)

	run := func(production bool) {
		bctx := plugin.NewBuildContext(paths, logging.Nop(), nil)
		bctx.Build = true
		bctx.Production = production
		collector := forgeerrors.NewCollector()
		orch := orchestrator.New(activePlugins(t), collector, logging.Nop())
		require.NoError(t, orch.Run(bctx, nil))
		require.False(t, collector.HasErrors(), "errors: %v", collector.Errors())
	}

	run(false)
	devShader, err := os.ReadFile(paths.Output("shaders", "water.frag"))
	require.NoError(t, err)
	assert.Contains(t, string(devShader), "// water")

	// Same sources, production on: the flip invalidates prior output, so
	// the shader redeploys minified even though its mtime never changed.
	run(true)
	prodShader, err := os.ReadFile(paths.Output("shaders", "water.frag"))
	require.NoError(t, err)
	assert.NotContains(t, string(prodShader), "// water")
}

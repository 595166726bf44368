package builtin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	forgeerrors "github.com/assetforge/assetforge/internal/errors"
	"github.com/assetforge/assetforge/internal/hash"
	"github.com/assetforge/assetforge/internal/plugin"
	"github.com/assetforge/assetforge/internal/protocol"
	"github.com/assetforge/assetforge/internal/watcher"
)

// MapPlugin encodes tile maps from assets/maps. It depends on spritesheet
// because encoded maps reference packed sheet artifacts.
type MapPlugin struct{}

// NewMapPlugin creates the map plugin.
func NewMapPlugin() *MapPlugin {
	return &MapPlugin{}
}

func (mp *MapPlugin) Name() string           { return "maps" }
func (mp *MapPlugin) Dependencies() []string { return []string{"spritesheet"} }

// Init skips the plugin for projects with no maps directory.
func (mp *MapPlugin) Init(ctx *plugin.BuildContext) (bool, error) {
	return dirExists(ctx.Paths.Asset("maps")), nil
}

func (mp *MapPlugin) Build(ctx *plugin.BuildContext) error {
	maps, err := listFiles(ctx.Paths.Asset("maps"))
	if err != nil {
		return err
	}
	for _, rel := range maps {
		if filepath.Ext(rel) != ".json" {
			continue
		}
		if err := mp.encode(ctx, rel); err != nil {
			return err
		}
	}
	return nil
}

func (mp *MapPlugin) Clean(ctx *plugin.BuildContext) error {
	return os.RemoveAll(ctx.Paths.Output("maps"))
}

// Watch coalesces edits per map and announces rebuilt maps to clients.
func (mp *MapPlugin) Watch(ctx *plugin.BuildContext, subscribe plugin.SubscribeFunc) error {
	srcRoot := ctx.Paths.Asset("maps")
	log := ctx.Logger.WithScope(mp.Name())

	_, err := subscribe(srcRoot, func(events []watcher.Event) {
		dirty := make(map[string]bool)
		for _, ev := range events {
			rel, err := filepath.Rel(srcRoot, ev.Path)
			if err != nil || filepath.Ext(rel) != ".json" {
				continue
			}
			if ev.Type == watcher.EventTypeDelete {
				os.Remove(ctx.Paths.Output("maps", rel))
				continue
			}
			dirty[rel] = true
		}

		for rel := range dirty {
			if err := mp.encode(ctx, rel); err != nil {
				log.Error(err, "re-encoding map", "map", rel)
				continue
			}
			ctx.Emit(protocol.ReloadMap(mapName(rel)))
		}
	}, nil)
	return err
}

// encode validates and deploys one map. Malformed metadata surfaces as a
// ValidationError naming the file and the constraint, never a raw parser
// trace.
func (mp *MapPlugin) encode(ctx *plugin.BuildContext, rel string) error {
	src := filepath.Join(ctx.Paths.Asset("maps"), rel)
	dest := ctx.Paths.Output("maps", rel)

	if !hash.Stale(src, dest) {
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return &forgeerrors.ValidationError{
			File:       src,
			Constraint: "map file must be a JSON object",
			Err:        err,
		}
	}
	if _, ok := doc["tiles"]; !ok {
		return &forgeerrors.ValidationError{
			File:       src,
			Constraint: "map file must declare a tiles field",
		}
	}

	if err := copyFile(src, dest); err != nil {
		return err
	}
	ctx.Hasher.Invalidate(dest)
	return nil
}

func mapName(rel string) string {
	return strings.TrimSuffix(filepath.ToSlash(rel), ".json")
}

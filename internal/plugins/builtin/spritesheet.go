package builtin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/assetforge/assetforge/internal/hash"
	"github.com/assetforge/assetforge/internal/plugin"
	"github.com/assetforge/assetforge/internal/protocol"
	"github.com/assetforge/assetforge/internal/watcher"
)

// spriteExtensions are the frame file types a sheet directory may contain;
// anything else under sprites/ is ignored by the watcher.
var spriteExtensions = map[string]bool{
	".png":  true,
	".json": true,
}

// SpriteSheetPlugin packs each immediate subdirectory of assets/sprites
// into one sheet artifact. The unit of incremental rebuild is the sheet: a
// burst of frame edits inside one sheet coalesces into a single repack.
type SpriteSheetPlugin struct{}

// NewSpriteSheetPlugin creates the sprite sheet plugin.
func NewSpriteSheetPlugin() *SpriteSheetPlugin {
	return &SpriteSheetPlugin{}
}

func (sp *SpriteSheetPlugin) Name() string           { return "spritesheet" }
func (sp *SpriteSheetPlugin) Dependencies() []string { return nil }

// sheetArtifact holds the packed description of one sheet.
type sheetArtifact struct {
	Name   string       `json:"name"`
	Frames []sheetFrame `json:"frames"`
}

type sheetFrame struct {
	File string `json:"file"`
	Hash string `json:"hash"`
}

func (sp *SpriteSheetPlugin) Init(ctx *plugin.BuildContext) (bool, error) {
	return dirExists(ctx.Paths.Asset("sprites")), nil
}

// Build repacks every sheet whose frames are newer than its artifact.
func (sp *SpriteSheetPlugin) Build(ctx *plugin.BuildContext) error {
	sheets, err := listDirs(ctx.Paths.Asset("sprites"))
	if err != nil {
		return err
	}
	for _, sheet := range sheets {
		if sp.stale(ctx, sheet) {
			if err := sp.pack(ctx, sheet); err != nil {
				return err
			}
		}
	}
	return nil
}

func (sp *SpriteSheetPlugin) Clean(ctx *plugin.BuildContext) error {
	return os.RemoveAll(ctx.Paths.Output("sprites"))
}

// Watch coalesces frame events per sheet so N edits inside one debounce
// window repack the sheet once, then announces the repack to clients.
func (sp *SpriteSheetPlugin) Watch(ctx *plugin.BuildContext, subscribe plugin.SubscribeFunc) error {
	srcRoot := ctx.Paths.Asset("sprites")
	log := ctx.Logger.WithScope(sp.Name())

	_, err := subscribe(srcRoot, func(events []watcher.Event) {
		// Identifier-keyed set, not a list: the batch may carry many
		// events for the same sheet.
		dirty := make(map[string]bool)
		for _, ev := range events {
			rel, err := filepath.Rel(srcRoot, ev.Path)
			if err != nil {
				continue
			}
			parts := strings.Split(filepath.ToSlash(rel), "/")
			sheet := parts[0]

			if len(parts) == 1 && ev.Type == watcher.EventTypeDelete {
				// A removed top-level sheet directory takes its artifact
				// with it.
				if err := os.Remove(sp.artifactPath(ctx, sheet)); err != nil && !os.IsNotExist(err) {
					log.Warn(err, "removing sheet artifact", "sheet", sheet)
				}
				continue
			}
			if len(parts) > 1 && !spriteExtensions[filepath.Ext(rel)] {
				continue
			}
			dirty[sheet] = true
		}

		for sheet := range dirty {
			if !dirExists(filepath.Join(srcRoot, sheet)) {
				continue
			}
			if err := sp.pack(ctx, sheet); err != nil {
				log.Error(err, "repacking sheet", "sheet", sheet)
				continue
			}
			ctx.Emit(protocol.ReloadSpriteSheet(sheet))
		}
	}, nil)
	return err
}

// stale reports whether any frame in the sheet is newer than its artifact.
func (sp *SpriteSheetPlugin) stale(ctx *plugin.BuildContext, sheet string) bool {
	artifact := sp.artifactPath(ctx, sheet)
	sheetDir := filepath.Join(ctx.Paths.Asset("sprites"), sheet)

	frames, err := listFiles(sheetDir)
	if err != nil {
		return true
	}
	for _, frame := range frames {
		if hash.Stale(filepath.Join(sheetDir, frame), artifact) {
			return true
		}
	}
	// A missing artifact with zero frames still needs an initial pack.
	if _, err := os.Stat(artifact); err != nil {
		return true
	}
	return false
}

// pack writes the sheet artifact from the current frame set.
func (sp *SpriteSheetPlugin) pack(ctx *plugin.BuildContext, sheet string) error {
	sheetDir := filepath.Join(ctx.Paths.Asset("sprites"), sheet)
	frames, err := listFiles(sheetDir)
	if err != nil {
		return err
	}

	artifact := sheetArtifact{Name: sheet}
	for _, frame := range frames {
		if !spriteExtensions[filepath.Ext(frame)] {
			continue
		}
		path := filepath.Join(sheetDir, frame)
		ctx.Hasher.Invalidate(path)
		artifact.Frames = append(artifact.Frames, sheetFrame{
			File: filepath.ToSlash(frame),
			Hash: ctx.Hasher.Hash(path),
		})
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	dest := sp.artifactPath(ctx, sheet)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

func (sp *SpriteSheetPlugin) artifactPath(ctx *plugin.BuildContext, sheet string) string {
	return ctx.Paths.Output("sprites", sheet+".sheet.json")
}

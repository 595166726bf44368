package builtin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/assetforge/assetforge/internal/hash"
	"github.com/assetforge/assetforge/internal/plugin"
	"github.com/assetforge/assetforge/internal/protocol"
	"github.com/assetforge/assetforge/internal/watcher"
)

// ManifestFile is the build artifact mapping static resource paths to
// cache-busted URLs; downstream plugins consume it.
const ManifestFile = "static-manifest.json"

// StaticPlugin deploys files under assets/static verbatim, versioning each
// emitted URL with a content hash so unchanged files keep stable URLs and
// changed files invalidate client caches.
type StaticPlugin struct {
	manifest map[string]string
	mutex    sync.Mutex
}

// NewStaticPlugin creates the static file plugin.
func NewStaticPlugin() *StaticPlugin {
	return &StaticPlugin{manifest: make(map[string]string)}
}

func (sp *StaticPlugin) Name() string           { return "static" }
func (sp *StaticPlugin) Dependencies() []string { return nil }

// Init reports applicability: a project without a static asset directory
// skips this plugin entirely.
func (sp *StaticPlugin) Init(ctx *plugin.BuildContext) (bool, error) {
	return dirExists(ctx.Paths.Asset("static")), nil
}

// Build copies stale files into the output root and records versioned URLs
// in the manifest.
func (sp *StaticPlugin) Build(ctx *plugin.BuildContext) error {
	srcRoot := ctx.Paths.Asset("static")
	files, err := listFiles(srcRoot)
	if err != nil {
		return err
	}

	for _, rel := range files {
		if _, err := sp.deploy(ctx, rel); err != nil {
			return err
		}
	}
	return sp.writeManifest(ctx)
}

// Clean removes deployed static output and the manifest.
func (sp *StaticPlugin) Clean(ctx *plugin.BuildContext) error {
	if err := os.RemoveAll(ctx.Paths.Output("static")); err != nil {
		return err
	}
	err := os.Remove(ctx.Paths.Build(ManifestFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Watch redeploys individual files as they change and pushes RELOAD_STATIC
// with the affected resources.
func (sp *StaticPlugin) Watch(ctx *plugin.BuildContext, subscribe plugin.SubscribeFunc) error {
	srcRoot := ctx.Paths.Asset("static")
	_, err := subscribe(srcRoot, func(events []watcher.Event) {
		changed := make(map[string]string)
		for _, ev := range events {
			rel, err := filepath.Rel(srcRoot, ev.Path)
			if err != nil {
				continue
			}
			switch ev.Type {
			case watcher.EventTypeDelete:
				sp.remove(ctx, rel)
			default:
				url, err := sp.deploy(ctx, rel)
				if err != nil {
					ctx.Logger.WithScope(sp.Name()).Warn(err, "redeploying static file", "file", rel)
					continue
				}
				changed[filepath.ToSlash(rel)] = url
			}
		}
		if err := sp.writeManifest(ctx); err != nil {
			ctx.Logger.WithScope(sp.Name()).Warn(err, "writing static manifest")
		}
		if len(changed) > 0 {
			ctx.Emit(protocol.ReloadStatic(changed))
		}
	}, nil)
	return err
}

// deploy copies one file into the output root when stale and returns its
// versioned URL.
func (sp *StaticPlugin) deploy(ctx *plugin.BuildContext, rel string) (string, error) {
	src := filepath.Join(ctx.Paths.Asset("static"), rel)
	dest := ctx.Paths.Output("static", rel)

	if hash.Stale(src, dest) {
		if err := copyFile(src, dest); err != nil {
			return "", err
		}
		ctx.Hasher.Invalidate(dest)
	}

	urlPath := "/static/" + filepath.ToSlash(rel)
	url := hash.VersionedURL(urlPath, ctx.Hasher.Hash(dest))

	sp.mutex.Lock()
	sp.manifest[filepath.ToSlash(rel)] = url
	sp.mutex.Unlock()
	return url, nil
}

func (sp *StaticPlugin) remove(ctx *plugin.BuildContext, rel string) {
	os.Remove(ctx.Paths.Output("static", rel))
	sp.mutex.Lock()
	delete(sp.manifest, filepath.ToSlash(rel))
	sp.mutex.Unlock()
}

func (sp *StaticPlugin) writeManifest(ctx *plugin.BuildContext) error {
	sp.mutex.Lock()
	data, err := json.MarshalIndent(sp.manifest, "", "  ")
	sp.mutex.Unlock()
	if err != nil {
		return err
	}
	path := ctx.Paths.Build(ManifestFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

package builtin

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/assetforge/assetforge/internal/hash"
	"github.com/assetforge/assetforge/internal/plugin"
	"github.com/assetforge/assetforge/internal/protocol"
	"github.com/assetforge/assetforge/internal/watcher"
)

var shaderExtensions = map[string]bool{
	".glsl": true,
	".vert": true,
	".frag": true,
}

// ShaderPlugin deploys GLSL sources from assets/shaders. Production builds
// strip comments and blank lines; development builds keep sources intact
// and push the new source to clients on every change so a running game can
// swap programs without a reload.
type ShaderPlugin struct{}

// NewShaderPlugin creates the shader plugin.
func NewShaderPlugin() *ShaderPlugin {
	return &ShaderPlugin{}
}

func (sh *ShaderPlugin) Name() string           { return "shader" }
func (sh *ShaderPlugin) Dependencies() []string { return nil }

func (sh *ShaderPlugin) Init(ctx *plugin.BuildContext) (bool, error) {
	return dirExists(ctx.Paths.Asset("shaders")), nil
}

func (sh *ShaderPlugin) Build(ctx *plugin.BuildContext) error {
	files, err := listFiles(ctx.Paths.Asset("shaders"))
	if err != nil {
		return err
	}
	for _, rel := range files {
		if !shaderExtensions[filepath.Ext(rel)] {
			continue
		}
		if err := sh.deploy(ctx, rel); err != nil {
			return err
		}
	}
	return nil
}

func (sh *ShaderPlugin) Clean(ctx *plugin.BuildContext) error {
	return os.RemoveAll(ctx.Paths.Output("shaders"))
}

func (sh *ShaderPlugin) Watch(ctx *plugin.BuildContext, subscribe plugin.SubscribeFunc) error {
	srcRoot := ctx.Paths.Asset("shaders")
	log := ctx.Logger.WithScope(sh.Name())

	_, err := subscribe(srcRoot, func(events []watcher.Event) {
		for _, ev := range events {
			rel, err := filepath.Rel(srcRoot, ev.Path)
			if err != nil || !shaderExtensions[filepath.Ext(rel)] {
				continue
			}
			if ev.Type == watcher.EventTypeDelete {
				os.Remove(ctx.Paths.Output("shaders", rel))
				continue
			}
			if err := sh.deploy(ctx, rel); err != nil {
				log.Error(err, "redeploying shader", "shader", rel)
				continue
			}
			src, err := os.ReadFile(ctx.Paths.Output("shaders", rel))
			if err != nil {
				log.Warn(err, "reading deployed shader", "shader", rel)
				continue
			}
			ctx.Emit(protocol.ReloadShader(shaderName(rel), string(src)))
		}
	}, nil)
	return err
}

func (sh *ShaderPlugin) deploy(ctx *plugin.BuildContext, rel string) error {
	src := filepath.Join(ctx.Paths.Asset("shaders"), rel)
	dest := ctx.Paths.Output("shaders", rel)

	if !hash.Stale(src, dest) {
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if ctx.Production {
		data = minifyShader(data)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return err
	}
	ctx.Hasher.Invalidate(dest)
	return nil
}

// minifyShader drops line comments and blank lines. Real reflection and
// optimization belong to an external toolchain; this keeps deployed
// sources lean without changing semantics.
func minifyShader(src []byte) []byte {
	var out []string
	for _, line := range strings.Split(string(src), "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return []byte(strings.Join(out, "\n") + "\n")
}

// shaderName strips the extension: shaders/water.frag reloads as "water".
func shaderName(rel string) string {
	base := filepath.ToSlash(rel)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

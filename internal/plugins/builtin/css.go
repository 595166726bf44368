package builtin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/assetforge/assetforge/internal/plugin"
)

// CSSPlugin generates a stylesheet exposing every static image as a CSS
// class with a cache-busted background-image URL. It consumes the manifest
// the static plugin writes, hence the dependency.
type CSSPlugin struct{}

// NewCSSPlugin creates the CSS generation plugin.
func NewCSSPlugin() *CSSPlugin {
	return &CSSPlugin{}
}

func (cp *CSSPlugin) Name() string           { return "css" }
func (cp *CSSPlugin) Dependencies() []string { return []string{"static"} }

// Init is applicable once the static manifest exists; the dependency order
// guarantees static built first within the same run.
func (cp *CSSPlugin) Init(ctx *plugin.BuildContext) (bool, error) {
	_, err := os.Stat(ctx.Paths.Build(ManifestFile))
	return err == nil, nil
}

func (cp *CSSPlugin) Build(ctx *plugin.BuildContext) error {
	data, err := os.ReadFile(ctx.Paths.Build(ManifestFile))
	if err != nil {
		return err
	}
	var manifest map[string]string
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("parsing static manifest: %w", err)
	}

	// Stable output bytes for identical input: required for idempotent
	// rebuilds.
	keys := make([]string, 0, len(manifest))
	for key := range manifest {
		if isImage(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("/* generated by assetforge; do not edit */\n")
	for _, key := range keys {
		sb.WriteString(fmt.Sprintf(".asset-%s { background-image: url(%q); }\n",
			cssIdentifier(key), manifest[key]))
	}

	dest := ctx.Paths.Output("assets.css")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(sb.String()), 0o644)
}

func (cp *CSSPlugin) Clean(ctx *plugin.BuildContext) error {
	err := os.Remove(ctx.Paths.Output("assets.css"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Watch is a no-op: the stylesheet regenerates with the next full build,
// and clients pick up individual images through RELOAD_STATIC.
func (cp *CSSPlugin) Watch(ctx *plugin.BuildContext, subscribe plugin.SubscribeFunc) error {
	return nil
}

func isImage(path string) bool {
	switch filepath.Ext(path) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

// cssIdentifier flattens a resource path into a class-name-safe token.
func cssIdentifier(path string) string {
	name := strings.TrimSuffix(path, filepath.Ext(path))
	replacer := strings.NewReplacer("/", "-", ".", "-", "_", "-", " ", "-")
	return replacer.Replace(name)
}

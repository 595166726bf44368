// Package builtin contains the compiled-in asset plugins. The transforms
// themselves are deliberately thin; what matters is how each plugin plugs
// into the orchestration lifecycle, the watcher, and the live channel.
package builtin

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/assetforge/assetforge/internal/plugin"
	"github.com/assetforge/assetforge/internal/registry"
)

// Register adds every builtin plugin factory to the registry in discovery
// order.
func Register(r *registry.Registry) error {
	factories := []plugin.Factory{
		func() plugin.Plugin { return NewStaticPlugin() },
		func() plugin.Plugin { return NewSpriteSheetPlugin() },
		func() plugin.Plugin { return NewShaderPlugin() },
		func() plugin.Plugin { return NewMapPlugin() },
		func() plugin.Plugin { return NewCSSPlugin() },
	}
	for _, f := range factories {
		if err := r.RegisterBuiltin(f); err != nil {
			return err
		}
	}
	return nil
}

// dirExists reports whether path is an existing directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// copyFile copies src to dest, creating parent directories.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// listFiles returns the sorted relative paths of regular files under root.
func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// listDirs returns the sorted names of immediate subdirectories of root.
func listDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Package config provides configuration management for assetforge using
// Viper for flexible loading from files, environment variables, and
// command-line flags.
//
// Configuration sources in precedence order: command-line flags, environment
// variables with the ASSETFORGE_ prefix, and an .assetforge.yml file at the
// game root. Validation rejects path traversal and shell metacharacters in
// user-supplied paths.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/assetforge/assetforge/internal/plugin"
)

type Config struct {
	GamePath   string `yaml:"game_path"`
	OutputPath string `yaml:"output_path"`
	Production bool   `yaml:"production"`
	Clean      bool   `yaml:"clean"`

	Paths   PathsConfig   `yaml:"paths"`
	Plugins PluginsConfig `yaml:"plugins"`
	Live    LiveConfig    `yaml:"live"`
	Watch   WatchConfig   `yaml:"watch"`
	Log     LogConfig     `yaml:"log"`
}

// PathsConfig holds the hidden subpath overrides. Empty fields fall back to
// the conventional layout under the game root.
type PathsConfig struct {
	AssetPath        string `yaml:"asset_path"`
	ClientPath       string `yaml:"client_path"`
	BuildPath        string `yaml:"build_path"`
	EditorClientPath string `yaml:"editor_client_path"`
	EditorServerPath string `yaml:"editor_server_path"`
}

type PluginsConfig struct {
	// Filter is the repeatable plugin-name allowlist; empty selects all.
	Filter []string `yaml:"filter"`
	// Custom toggles externally registered plugins.
	Custom bool `yaml:"custom"`
}

type LiveConfig struct {
	Serve bool `yaml:"serve"`
	Port  int  `yaml:"port"`
}

type WatchConfig struct {
	DebounceMs int      `yaml:"debounce_ms"`
	Ignore     []string `yaml:"ignore"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load builds a Config from viper state and applies defaults and validation.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.GamePath == "" {
		config.GamePath = "."
	}
	if config.Live.Port == 0 {
		config.Live.Port = 8443
	}
	if config.Watch.DebounceMs == 0 {
		config.Watch.DebounceMs = 100
	}
	if len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = []string{".*", "*~", "*.swp"}
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
	if !viper.IsSet("plugins.custom") {
		config.Plugins.Custom = true
	}

	// Underscore-separated keys do not unmarshal into camel-case fields;
	// mirror them explicitly.
	if viper.IsSet("game_path") {
		config.GamePath = viper.GetString("game_path")
	}
	if viper.IsSet("output_path") {
		config.OutputPath = viper.GetString("output_path")
	}
	if viper.IsSet("watch.debounce_ms") {
		config.Watch.DebounceMs = viper.GetInt("watch.debounce_ms")
	}
	if viper.IsSet("paths.asset_path") {
		config.Paths.AssetPath = viper.GetString("paths.asset_path")
	}
	if viper.IsSet("paths.client_path") {
		config.Paths.ClientPath = viper.GetString("paths.client_path")
	}
	if viper.IsSet("paths.build_path") {
		config.Paths.BuildPath = viper.GetString("paths.build_path")
	}
	if viper.IsSet("paths.editor_client_path") {
		config.Paths.EditorClientPath = viper.GetString("paths.editor_client_path")
	}
	if viper.IsSet("paths.editor_server_path") {
		config.Paths.EditorServerPath = viper.GetString("paths.editor_server_path")
	}
	if viper.IsSet("plugins.filter") && len(config.Plugins.Filter) == 0 {
		config.Plugins.Filter = viper.GetStringSlice("plugins.filter")
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// ResolvePaths derives the absolute project layout from the config. The
// output root is required; every other root defaults to a conventional
// location under the game root unless overridden.
func (c *Config) ResolvePaths() (plugin.Paths, error) {
	if c.OutputPath == "" {
		return plugin.Paths{}, fmt.Errorf("game output path is required")
	}

	gameRoot, err := filepath.Abs(c.GamePath)
	if err != nil {
		return plugin.Paths{}, fmt.Errorf("resolving game path: %w", err)
	}
	outputRoot, err := filepath.Abs(c.OutputPath)
	if err != nil {
		return plugin.Paths{}, fmt.Errorf("resolving output path: %w", err)
	}

	resolve := func(override, fallback string) string {
		if override == "" {
			return filepath.Join(gameRoot, fallback)
		}
		if filepath.IsAbs(override) {
			return override
		}
		return filepath.Join(gameRoot, override)
	}

	return plugin.Paths{
		GameRoot:         gameRoot,
		AssetRoot:        resolve(c.Paths.AssetPath, "assets"),
		ClientRoot:       resolve(c.Paths.ClientPath, "client"),
		BuildRoot:        resolve(c.Paths.BuildPath, filepath.Join(".assetforge", "build")),
		OutputRoot:       outputRoot,
		EditorClientRoot: resolve(c.Paths.EditorClientPath, filepath.Join("editor", "client")),
		EditorServerRoot: resolve(c.Paths.EditorServerPath, filepath.Join("editor", "server")),
	}, nil
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if config.Live.Port < 0 || config.Live.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Live.Port)
	}
	if config.Watch.DebounceMs < 0 {
		return fmt.Errorf("debounce %dms must not be negative", config.Watch.DebounceMs)
	}

	paths := []string{
		config.GamePath,
		config.Paths.AssetPath,
		config.Paths.ClientPath,
		config.Paths.BuildPath,
		config.Paths.EditorClientPath,
		config.Paths.EditorServerPath,
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := validatePath(path); err != nil {
			return err
		}
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character %q: %s", char, path)
		}
	}
	return nil
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Initialize a new game project",
	Long: `Initialize a game project with the conventional directory layout and an
.assetforge.yml configuration file. If no name is provided, initializes in
the current directory.

Examples:
  assetforge init              # Initialize in the current directory
  assetforge init my-game      # Initialize in a new directory 'my-game'
  assetforge init --minimal    # Skip the placeholder asset directories`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initMinimal bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initMinimal, "minimal", false, "config file only, no asset directories")
}

// projectConfig is the scaffolded .assetforge.yml. Only the keys a new
// project plausibly edits are emitted; everything else keeps its default.
type projectConfig struct {
	OutputPath string `yaml:"output_path"`
	Live       struct {
		Port int `yaml:"port"`
	} `yaml:"live"`
	Watch struct {
		Ignore []string `yaml:"ignore"`
	} `yaml:"watch"`
}

func runInit(cmd *cobra.Command, args []string) error {
	projectDir := "."
	if len(args) == 1 {
		projectDir = args[0]
		if err := os.MkdirAll(projectDir, 0o755); err != nil {
			return fmt.Errorf("creating project directory: %w", err)
		}
	}

	configPath := filepath.Join(projectDir, ".assetforge.yml")
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}

	var cfg projectConfig
	cfg.OutputPath = "dist"
	cfg.Live.Port = 8443
	cfg.Watch.Ignore = []string{".*", "*~", "*.swp"}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return err
	}

	if !initMinimal {
		dirs := []string{
			filepath.Join("assets", "static"),
			filepath.Join("assets", "sprites"),
			filepath.Join("assets", "shaders"),
			filepath.Join("assets", "maps"),
			"client",
			filepath.Join("editor", "client"),
			filepath.Join("editor", "server"),
		}
		for _, dir := range dirs {
			if err := os.MkdirAll(filepath.Join(projectDir, dir), 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", dir, err)
			}
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Initialized assetforge project in", projectDir)
	fmt.Fprintln(cmd.OutOrStdout(), "Next: assetforge build --game-path", projectDir)
	return nil
}

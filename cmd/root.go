// Package cmd provides the assetforge command-line interface.
//
// Configuration sources in precedence order: command-line flags,
// environment variables with the ASSETFORGE_ prefix (for example
// ASSETFORGE_PRODUCTION=true or ASSETFORGE_LIVE_PORT=9001), and an
// .assetforge.yml file at the working directory or the path given by
// --config.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "assetforge",
	Short: "Asset build orchestrator with live reload",
	Long: `Assetforge turns a tree of game source assets (sprites, shaders, maps,
static files) into deployable output, and keeps that output live-synchronized
with a running client during development.

Phases:
  assetforge clean --game-output-path dist    Remove built output
  assetforge build --game-output-path dist    Build all assets
  assetforge run --game-output-path dist      Build, watch, and serve with
                                              the editor server attached`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .assetforge.yml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig wires viper to the config file and ASSETFORGE_ environment
// variables before any command runs.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".assetforge")
	}

	viper.SetEnvPrefix("ASSETFORGE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing or malformed config file degrades to defaults.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

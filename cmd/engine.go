package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/assetforge/assetforge/internal/config"
	forgeerrors "github.com/assetforge/assetforge/internal/errors"
	"github.com/assetforge/assetforge/internal/logging"
	"github.com/assetforge/assetforge/internal/orchestrator"
	"github.com/assetforge/assetforge/internal/plugin"
	"github.com/assetforge/assetforge/internal/plugins/builtin"
	"github.com/assetforge/assetforge/internal/protocol"
	"github.com/assetforge/assetforge/internal/registry"
)

// customFactories holds externally registered plugin factories, resolved
// once at startup. Embedders add entries before Execute.
var customFactories []plugin.Factory

// RegisterPlugin adds an external plugin factory. Custom plugins run after
// built-ins unless a dependency orders them otherwise, and are excluded
// entirely when --custom-build-plugins=false.
func RegisterPlugin(factory plugin.Factory) {
	customFactories = append(customFactories, factory)
}

// BuildFailedError reports a run that finished with recovered plugin
// failures. It maps to a non-zero exit code without the unhandled
// exception banner: every individual failure was already logged with its
// plugin scope.
type BuildFailedError struct {
	Count int
}

// Error implements the error interface
func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("finished with %d plugin error(s)", e.Count)
}

// engine bundles everything one command invocation needs.
type engine struct {
	cfg       *config.Config
	logger    logging.Logger
	collector *forgeerrors.Collector
	paths     plugin.Paths
	plugins   []plugin.Plugin
}

// newEngine loads configuration and instantiates the active plugin set.
func newEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(&logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	if err := builtin.Register(reg); err != nil {
		return nil, err
	}
	for _, factory := range customFactories {
		if err := reg.RegisterCustom(factory); err != nil {
			return nil, err
		}
	}

	return &engine{
		cfg:       cfg,
		logger:    logger,
		collector: forgeerrors.NewCollector(),
		paths:     paths,
		plugins:   reg.Instantiate(cfg.Plugins.Filter, cfg.Plugins.Custom),
	}, nil
}

// buildContext assembles the shared context for one orchestration run.
// emit may be nil outside run mode.
func (e *engine) buildContext(emit func(protocol.Mutation)) *plugin.BuildContext {
	bctx := plugin.NewBuildContext(e.paths, e.logger, emit)
	bctx.Production = e.cfg.Production
	return bctx
}

// execute runs the orchestrator and converts recovered plugin failures
// into the exit-code-bearing BuildFailedError.
func (e *engine) execute(bctx *plugin.BuildContext, subscribe plugin.SubscribeFunc) error {
	orch := orchestrator.New(e.plugins, e.collector, e.logger)
	if err := orch.Run(bctx, subscribe); err != nil {
		return err
	}
	if e.collector.HasErrors() {
		return &BuildFailedError{Count: e.collector.Count()}
	}
	return nil
}

// addProjectFlags attaches the flags shared by clean, build, and run.
func addProjectFlags(cmd *cobra.Command) {
	cmd.Flags().String("game-path", ".", "root of the game project")
	cmd.Flags().String("game-output-path", "", "directory for deployable output (required)")
	cmd.Flags().Bool("production", false, "production build")
	cmd.Flags().StringSlice("build-plugin-filter", nil, "plugin-name allowlist (repeatable)")
	cmd.Flags().Bool("custom-build-plugins", true, "include externally registered plugins")

	// Subpath overrides for non-conventional project layouts.
	cmd.Flags().String("asset-path", "", "override the asset root")
	cmd.Flags().String("client-path", "", "override the client root")
	cmd.Flags().String("build-path", "", "override the intermediate build root")
	cmd.Flags().String("editor-client-path", "", "override the editor client root")
	cmd.Flags().String("editor-server-path", "", "override the editor server root")
	for _, hidden := range []string{"asset-path", "client-path", "build-path", "editor-client-path", "editor-server-path"} {
		cmd.Flags().MarkHidden(hidden)
	}
}

// bindProjectFlags points viper at the invoked command's flag set. Binding
// happens at run time, not init, so sibling commands sharing key names do
// not clobber each other.
func bindProjectFlags(cmd *cobra.Command) {
	keys := map[string]string{
		"game_path":                "game-path",
		"output_path":              "game-output-path",
		"production":               "production",
		"plugins.filter":           "build-plugin-filter",
		"plugins.custom":           "custom-build-plugins",
		"paths.asset_path":         "asset-path",
		"paths.client_path":        "client-path",
		"paths.build_path":         "build-path",
		"paths.editor_client_path": "editor-client-path",
		"paths.editor_server_path": "editor-server-path",
	}
	for key, name := range keys {
		bindFlag(key, cmd.Flags().Lookup(name))
	}
}

func bindFlag(key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	viper.BindPFlag(key, flag)
}

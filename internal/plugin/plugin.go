// Package plugin defines the build plugin contract and the BuildContext
// shared by every plugin in one orchestration run.
package plugin

import (
	"path/filepath"

	"github.com/assetforge/assetforge/internal/hash"
	"github.com/assetforge/assetforge/internal/logging"
	"github.com/assetforge/assetforge/internal/protocol"
	"github.com/assetforge/assetforge/internal/watcher"
)

// Plugin is a unit of the asset build. The orchestrator drives each plugin
// through init, clean, build, and watch in dependency order; which phases
// run is decided by the BuildContext, and a plugin must tolerate any
// combination.
type Plugin interface {
	// Name returns the unique plugin name used in dependency declarations.
	Name() string

	// Dependencies returns the names of plugins that must build first.
	// Names not present in the active set are treated as satisfied.
	Dependencies() []string

	// Init decides applicability for this run. Returning false skips Build
	// and Watch for the plugin entirely.
	Init(ctx *BuildContext) (bool, error)

	// Build produces the plugin's output artifacts. It must be idempotent:
	// rebuilding unchanged input reproduces the same bytes.
	Build(ctx *BuildContext) error

	// Clean removes the plugin's output artifacts. Failures are best-effort
	// and never fatal.
	Clean(ctx *BuildContext) error

	// Watch registers filesystem subscriptions for incremental rebuilds.
	// It must return quickly after registering callbacks.
	Watch(ctx *BuildContext, subscribe SubscribeFunc) error
}

// SubscribeFunc is the FileWatcher registration function handed to Watch.
type SubscribeFunc func(root string, handler watcher.BatchHandler, opts *watcher.SubscribeOptions) (*watcher.Subscription, error)

// Factory constructs a plugin instance. The registry holds one factory per
// plugin name.
type Factory func() Plugin

// Paths is the directory layout of one game project.
type Paths struct {
	GameRoot         string
	AssetRoot        string
	ClientRoot       string
	BuildRoot        string
	OutputRoot       string
	EditorClientRoot string
	EditorServerRoot string
}

// Asset returns a path under the asset root.
func (p Paths) Asset(elem ...string) string {
	return filepath.Join(append([]string{p.AssetRoot}, elem...)...)
}

// Output returns a path under the output root.
func (p Paths) Output(elem ...string) string {
	return filepath.Join(append([]string{p.OutputRoot}, elem...)...)
}

// Build returns a path under the build root.
func (p Paths) Build(elem ...string) string {
	return filepath.Join(append([]string{p.BuildRoot}, elem...)...)
}

// BuildContext is shared by reference across all plugins in a run. The
// Production, Clean, and Watch fields select which lifecycle phases the
// orchestrator invokes.
type BuildContext struct {
	Production bool
	Clean      bool
	Build      bool
	Watch      bool
	WatchPort  int

	Paths  Paths
	Hasher *hash.Hasher
	Logger logging.Logger

	// emit pushes an event toward connected clients; nil outside run mode.
	emit func(protocol.Mutation)
}

// NewBuildContext assembles a context for one run. emit may be nil when no
// live channel exists (plain build or clean).
func NewBuildContext(paths Paths, logger logging.Logger, emit func(protocol.Mutation)) *BuildContext {
	if logger == nil {
		logger = logging.Nop()
	}
	return &BuildContext{
		Paths:  paths,
		Hasher: hash.NewHasher(),
		Logger: logger,
		emit:   emit,
	}
}

// Emit pushes a reload event into the broadcast channel. Safe to call in
// any mode; without a live channel the event is dropped.
func (ctx *BuildContext) Emit(m protocol.Mutation) {
	if ctx.emit != nil {
		ctx.emit(m)
	}
}

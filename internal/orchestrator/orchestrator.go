// Package orchestrator drives every plugin through its lifecycle in
// dependency order and aggregates failures without letting one bad plugin
// block the rest.
//
// The state machine over one run is Start → (Clean)? → (Init→Build per
// plugin)? → (Watch per plugin)? → Done. Lifecycle calls execute strictly
// sequentially, never concurrently across plugins, so two plugins can never
// race on overlapping output paths.
package orchestrator

import (
	"fmt"

	forgeerrors "github.com/assetforge/assetforge/internal/errors"
	"github.com/assetforge/assetforge/internal/logging"
	"github.com/assetforge/assetforge/internal/plugin"
	"github.com/assetforge/assetforge/internal/registry"
	"github.com/assetforge/assetforge/internal/watcher"
)

// Orchestrator owns one orchestration run over an instantiated plugin set.
type Orchestrator struct {
	plugins   []plugin.Plugin
	collector *forgeerrors.Collector
	logger    logging.Logger
}

// New creates an orchestrator. The collector accumulates every recovered
// plugin failure; the run reports success iff it stays empty.
func New(plugins []plugin.Plugin, collector *forgeerrors.Collector, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Orchestrator{
		plugins:   plugins,
		collector: collector,
		logger:    logger.WithScope("orchestrator"),
	}
}

// ErrorCount returns the number of recovered plugin failures so far.
func (o *Orchestrator) ErrorCount() int {
	return o.collector.Count()
}

// Run executes the selected lifecycle phases for every plugin in dependency
// order. subscribe may be nil when bctx.Watch is false.
//
// Run itself only fails on conditions outside the plugin sandbox; plugin
// failures are recorded in the collector and the remaining plugins still
// execute.
func (o *Orchestrator) Run(bctx *plugin.BuildContext, subscribe plugin.SubscribeFunc) error {
	// Switching production↔development invalidates all prior output.
	if info, ok := ReadBuildInfo(bctx.Paths.GameRoot); ok && info.Production != bctx.Production {
		o.logger.Info("production flag changed since last run, forcing clean",
			"was", info.Production, "now", bctx.Production)
		bctx.Clean = true
	}

	ordered := o.sortPlugins()

	for _, p := range ordered {
		o.runPlugin(p, bctx, subscribe)
	}

	if err := WriteBuildInfo(bctx.Paths.GameRoot, BuildInfo{Production: bctx.Production}); err != nil {
		o.logger.Warn(err, "recording build info marker")
	}

	return nil
}

// sortPlugins orders the set by declared dependencies. A cycle is fatal to
// the sort step only: the run proceeds with the best-effort order after an
// explicit warning rather than blocking entirely on an ordering problem.
func (o *Orchestrator) sortPlugins() []plugin.Plugin {
	byName := make(map[string]plugin.Plugin, len(o.plugins))
	for _, p := range o.plugins {
		byName[p.Name()] = p
	}

	ordered, err := registry.Sort(registry.Describe(o.plugins))
	if err != nil {
		o.logger.Warn(err, "plugin dependency cycle detected, proceeding with best-effort order")
		o.collector.Record(err)
	}

	result := make([]plugin.Plugin, 0, len(ordered))
	for _, d := range ordered {
		result = append(result, byName[d.Name])
	}
	return result
}

// runPlugin drives one plugin through the phases the context selects.
func (o *Orchestrator) runPlugin(p plugin.Plugin, bctx *plugin.BuildContext, subscribe plugin.SubscribeFunc) {
	name := p.Name()
	log := o.logger.WithScope(name)

	if bctx.Clean {
		// Best-effort cleanup: failures are logged and swallowed.
		if err := callPhase(func() error { return p.Clean(bctx) }); err != nil {
			log.Warn(err, "clean failed")
		}
	}

	applicable := true
	if bctx.Build {
		ok, err := o.initPlugin(p, bctx)
		if err != nil {
			o.fail(log, name, "init", err)
			return
		}
		applicable = ok
		if !applicable {
			log.Debug("not applicable, skipping")
			return
		}

		log.Debug("building")
		if err := callPhase(func() error { return p.Build(bctx) }); err != nil {
			// Partial-failure semantics: record, log, move on. The plugin
			// still watches so an edit can repair the failed build.
			o.fail(log, name, "build", err)
		}
	}

	if bctx.Watch && applicable {
		if subscribe == nil {
			subscribe = noopSubscribe
		}
		if err := callPhase(func() error { return p.Watch(bctx, subscribe) }); err != nil {
			o.fail(log, name, "watch", err)
		}
	}
}

func (o *Orchestrator) initPlugin(p plugin.Plugin, bctx *plugin.BuildContext) (bool, error) {
	var applicable bool
	err := callPhase(func() error {
		var initErr error
		applicable, initErr = p.Init(bctx)
		return initErr
	})
	return applicable, err
}

func (o *Orchestrator) fail(log logging.Logger, name, phase string, err error) {
	perr := forgeerrors.NewPluginError(name, phase, err)
	log.Error(err, phase+" failed")
	o.collector.Record(perr)
}

// callPhase confines a plugin phase: a panic inside plugin code becomes an
// ordinary error instead of terminating the run.
func callPhase(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func noopSubscribe(string, watcher.BatchHandler, *watcher.SubscribeOptions) (*watcher.Subscription, error) {
	return nil, nil
}

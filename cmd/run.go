package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/assetforge/assetforge/internal/hub"
	"github.com/assetforge/assetforge/internal/supervisor"
	"github.com/assetforge/assetforge/internal/watcher"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build, watch, and serve with live reload",
	Long: `Build all assets, then keep the output synchronized with source changes.
In development mode this starts the live channel, spawns the editor server
under supervision, and pushes reload events to connected clients. With
--production the editor and watcher stay off and the output is only served.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	addProjectFlags(runCmd)
	runCmd.Flags().Bool("clean", false, "clean output before building")
	runCmd.Flags().IntP("port", "p", 8443, "live channel and HTTP port")
}

func runRun(cmd *cobra.Command, args []string) error {
	bindProjectFlags(cmd)
	viper.BindPFlag("clean", cmd.Flags().Lookup("clean"))
	viper.BindPFlag("live.port", cmd.Flags().Lookup("port"))

	e, err := newEngine()
	if err != nil {
		return err
	}

	// Production gates hot-reload instrumentation entirely: no watcher, no
	// editor process, no live channel.
	if e.cfg.Production {
		bctx := e.buildContext(nil)
		bctx.Clean = e.cfg.Clean
		bctx.Build = true
		if err := e.execute(bctx, nil); err != nil {
			return err
		}
		addr := fmt.Sprintf("127.0.0.1:%d", e.cfg.Live.Port)
		e.logger.Info("serving production output", "addr", addr)
		return http.ListenAndServe(addr, http.FileServer(http.Dir(e.paths.OutputRoot)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.New(e.paths.OutputRoot, e.logger)
	defer h.Shutdown()

	fw, err := watcher.New(time.Duration(e.cfg.Watch.DebounceMs)*time.Millisecond, e.logger)
	if err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	defer fw.Stop()
	fw.Start(ctx)

	subscribe := func(root string, handler watcher.BatchHandler, opts *watcher.SubscribeOptions) (*watcher.Subscription, error) {
		if opts == nil {
			opts = &watcher.SubscribeOptions{}
		}
		if len(opts.Ignore) == 0 {
			opts.Ignore = e.cfg.Watch.Ignore
		}
		return fw.Subscribe(root, handler, opts)
	}

	bctx := e.buildContext(h.Broadcast)
	bctx.Clean = e.cfg.Clean
	bctx.Build = true
	bctx.Watch = true
	bctx.WatchPort = e.cfg.Live.Port

	buildErr := e.execute(bctx, subscribe)
	if buildErr != nil {
		if _, ok := buildErr.(*BuildFailedError); !ok {
			return buildErr
		}
		// Plugin failures do not block watch mode; the watcher gives the
		// developer a chance to fix and rebuild.
		e.logger.Warn(buildErr, "initial build finished with errors, watching anyway")
	}

	sup := supervisor.New(supervisor.Config{
		Port:   e.cfg.Live.Port,
		Logger: e.logger,
	}, h)
	sup.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/live", h.Handler())
	mux.Handle("/", http.FileServer(http.Dir(e.paths.OutputRoot)))

	server := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", e.cfg.Live.Port),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	e.logger.Info("live channel up", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return buildErr
}

package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build all assets without watching",
	Long: `Build every applicable asset plugin in dependency order.

Examples:
  assetforge build --game-output-path dist
  assetforge build --game-output-path dist --production
  assetforge build --game-output-path dist --clean
  assetforge build --game-output-path dist --serve --port 8080`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	addProjectFlags(buildCmd)
	buildCmd.Flags().Bool("clean", false, "clean output before building")
	buildCmd.Flags().Bool("serve", false, "serve the output root after building")
	buildCmd.Flags().IntP("port", "p", 8443, "port for --serve")
}

func runBuild(cmd *cobra.Command, args []string) error {
	bindProjectFlags(cmd)
	viper.BindPFlag("clean", cmd.Flags().Lookup("clean"))
	viper.BindPFlag("live.serve", cmd.Flags().Lookup("serve"))
	viper.BindPFlag("live.port", cmd.Flags().Lookup("port"))

	e, err := newEngine()
	if err != nil {
		return err
	}

	bctx := e.buildContext(nil)
	bctx.Clean = e.cfg.Clean
	bctx.Build = true

	if err := e.execute(bctx, nil); err != nil {
		return err
	}
	e.logger.Info("build complete", "output", e.paths.OutputRoot)

	if e.cfg.Live.Serve {
		addr := fmt.Sprintf("127.0.0.1:%d", e.cfg.Live.Port)
		e.logger.Info("serving output", "addr", addr)
		return http.ListenAndServe(addr, http.FileServer(http.Dir(e.paths.OutputRoot)))
	}
	return nil
}

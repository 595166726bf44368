package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/assetforge/assetforge/internal/editor"
	"github.com/assetforge/assetforge/internal/logging"
	"github.com/assetforge/assetforge/internal/supervisor"
)

// editorServerCmd is the supervised child the run command spawns. It is
// hidden: users interact with it only through the supervisor.
var editorServerCmd = &cobra.Command{
	Use:    "editor-server",
	Hidden: true,
	Short:  "Run the editor server (spawned by assetforge run)",
	RunE:   runEditorServer,
}

func init() {
	rootCmd.AddCommand(editorServerCmd)
}

func runEditorServer(cmd *cobra.Command, args []string) error {
	raw := os.Getenv(supervisor.PortEnvVar)
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 {
		return fmt.Errorf("%s must carry the live channel port, got %q", supervisor.PortEnvVar, raw)
	}

	logger := logging.NewLogger(&logging.Config{
		Level:  logging.ParseLevel(viper.GetString("log.level")),
		Format: viper.GetString("log.format"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return editor.New(port, logger).Run(ctx)
}

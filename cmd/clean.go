package cmd

import (
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove built output",
	Long: `Run every plugin's clean phase. Failures are best-effort: a plugin that
cannot remove its artifacts is logged and skipped.`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	addProjectFlags(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	bindProjectFlags(cmd)

	e, err := newEngine()
	if err != nil {
		return err
	}

	bctx := e.buildContext(nil)
	bctx.Clean = true

	if err := e.execute(bctx, nil); err != nil {
		return err
	}
	e.logger.Info("clean complete")
	return nil
}

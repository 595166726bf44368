package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/assetforge/assetforge/cmd"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
)

func main() {
	if err := cmd.Execute(); err != nil {
		// Plugin failures were already logged per plugin; a summary line
		// is enough. Everything else gets the full banner.
		var buildErr *cmd.BuildFailedError
		if errors.As(err, &buildErr) {
			fmt.Fprintln(os.Stderr, detailStyle.Render(buildErr.Error()))
		} else {
			fmt.Fprintln(os.Stderr, bannerStyle.Render("Unhandled Exception"))
			fmt.Fprintln(os.Stderr, detailStyle.Render(err.Error()))
		}
		os.Exit(1)
	}
}

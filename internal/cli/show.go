package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"metalwatch/internal/app"
)

var (
	showDate   string
	showMetals []string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display stored prices for one day",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ShowOptions{
			When:   strings.TrimSpace(showDate),
			Metals: showMetals,
		}
		return getApp().Show(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	showCmd.Flags().StringVar(&showDate, "date", "", `Day to show, e.g. "yesterday" or "2026-03-01" (defaults to latest)`)
	showCmd.Flags().StringSliceVar(&showMetals, "metal", nil, "Restrict to these metals (name or code)")
}

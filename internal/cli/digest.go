package cli

import (
	"github.com/spf13/cobra"

	"metalwatch/internal/app"
)

var digestSend bool

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Answer the configured digest questions once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Digest(cmd.Context(), app.DigestOptions{Send: digestSend}, cmd.OutOrStdout())
	},
}

func init() {
	digestCmd.Flags().BoolVar(&digestSend, "send", false, "Deliver the digest through the enabled channel")
}

package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"metalwatch/internal/app"
)

var (
	askStream   bool
	askEvidence bool
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION...",
	Short: "Answer one question from stored prices",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.AskOptions{
			Question: strings.Join(args, " "),
			Stream:   askStream,
			Evidence: askEvidence,
		}
		return getApp().Ask(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	askCmd.Flags().BoolVar(&askStream, "stream", false, "Print the answer as it is generated")
	askCmd.Flags().BoolVar(&askEvidence, "evidence", false, "Also print the evidence the answer is based on")
}

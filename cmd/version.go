package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags "-X ...cmd.version=".
var version = "(devel)"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the quizforge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "quizforge %s\n", version)
	},
}

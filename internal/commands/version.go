package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/duobooth/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "duobooth %s (%s/%s)\n", version.Version, runtime.GOOS, runtime.GOARCH)
	},
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/BioHazard786/duobooth/internal/session"
)

var hostOpts callOptions

var hostCmd = &cobra.Command{
	Use:     "host",
	Aliases: []string{"h"},
	Short:   "Create a room and wait for a friend to join",
	Long: `Create a photo booth room and wait for a friend to join it.

Examples:
  duobooth host
  duobooth host --filter Noir
  duobooth host --server https://booth.example.com --video me.ivf --audio me.ogg`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd.Context(), session.RoleHost, "", hostOpts)
	},
}

func init() {
	hostOpts.register(hostCmd.Flags())
}

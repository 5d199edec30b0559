package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/duobooth/internal/config"
	"github.com/BioHazard786/duobooth/internal/signaling"
	"github.com/BioHazard786/duobooth/internal/ui"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show relay server statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(config.Options{Server: flagServer})
		if err != nil {
			return err
		}
		client, err := signaling.NewClient(cfg.ServerURL)
		if err != nil {
			return err
		}

		sp := ui.NewSimpleSpinner("Fetching relay statistics...")
		sp.Start()
		stats, err := client.Stats(cmd.Context())
		sp.Stop()
		if err != nil {
			return err
		}

		fmt.Println(ui.RelayStatsView(cfg.ServerURL, stats))
		return nil
	},
}

// Package commands holds the duobooth command tree.
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/duobooth/internal/logging"
	"github.com/BioHazard786/duobooth/internal/ui"
	"github.com/BioHazard786/duobooth/internal/version"
)

var (
	flagServer       string
	flagSTUN         string
	flagTURN         string
	flagTURNUser     string
	flagTURNPass     string
	flagRelay        bool
	flagPollInterval time.Duration
	flagNoWatch      bool
	flagLogFile      string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "duobooth",
	Short: "Two-person photo booth video calls over WebRTC",
	Long: `duobooth connects two people in a live video call with photo booth filters.
One side hosts a room and shares its code; the other joins with that code.
Signaling goes through a small relay server that you can run with "duobooth serve".`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logFile := flagLogFile
		if logFile == "" {
			logFile = os.Getenv("LOG_FILE")
		}
		logging.Init(logFile)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	os.Exit(run(rootCmd))
}

// ExecuteServer runs the relay server as a standalone binary.
func ExecuteServer() {
	cmd := newServeCmd()
	cmd.Use = "duobooth-server"
	cmd.Version = version.Version
	os.Exit(run(cmd))
}

func run(cmd *cobra.Command) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	if err := cmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		return 1
	}
	return 0
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagServer, "server", "", "Signaling relay URL (default http://localhost:8080)")
	pf.StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN servers, comma separated")
	pf.StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	pf.StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	pf.StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	pf.BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
	pf.DurationVar(&flagPollInterval, "poll-interval", 0, "Relay poll period (default 1s)")
	pf.BoolVar(&flagNoWatch, "no-watch", false, "Disable WebSocket wake-ups and rely on polling only")
	pf.StringVar(&flagLogFile, "log-file", "", "Write logs to a rotating file instead of stderr")

	rootCmd.AddCommand(hostCmd, joinCmd, statsCmd, versionCmd, newServeCmd())
}

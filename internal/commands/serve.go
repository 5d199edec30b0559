package commands

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/BioHazard786/duobooth/internal/config"
	"github.com/BioHazard786/duobooth/internal/logging"
	"github.com/BioHazard786/duobooth/internal/relay"
	"github.com/BioHazard786/duobooth/internal/server"
	"github.com/BioHazard786/duobooth/internal/store"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the signaling relay server",
		Long: `Run the signaling relay that hosts rooms and forwards messages between
the two participants of each call.

Configuration comes from an optional YAML file, a .env file in the working
directory and environment variables (HTTP_HOST, HTTP_PORT, ROOM_TTL, ...).

Examples:
  duobooth serve
  duobooth serve --config duobooth.yaml
  HTTP_PORT=9000 LOG_FORMAT=text duobooth serve`,
		Args: cobra.NoArgs,
		// The server logs JSON to stdout instead of the CLI's logger.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $DUOBOOTH_CONFIG)")
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return err
	}

	log := logging.NewServer(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	st := store.New(
		store.WithTTL(cfg.Rooms.TTL),
		store.WithMaxMessages(cfg.Rooms.MaxMessages),
		store.WithExpireHook(func(roomID string) {
			log.Debug("room expired", "room_id", roomID)
		}),
	)
	relay.RegisterStoreGauges(reg, st)

	hub := relay.NewHub(log)
	svc := relay.NewService(relay.Config{
		Store:   st,
		Hub:     hub,
		Metrics: relay.NewMetrics(reg),
		Logger:  log,
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		svc.Janitor(ctx, cfg.Rooms.SweepInterval)
	}()

	srv := server.New(server.Options{
		Relay:          svc,
		Hub:            hub,
		Gatherer:       reg,
		RateLimit:      rate.Limit(cfg.RateLimit.PerSecond),
		RateBurst:      cfg.RateLimit.Burst,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         log,
	})

	err = srv.Run(ctx, cfg.Addr())
	wg.Wait()
	return err
}

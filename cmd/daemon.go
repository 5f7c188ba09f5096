package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"

	"github.com/kanta-app/cluster-faces/internal/engine"
	"github.com/kanta-app/cluster-faces/internal/store/postgres"
	"github.com/kanta-app/cluster-faces/internal/web"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run clustering passes on a schedule",
	Long: `Run the worker as a long-lived daemon. A clustering pass executes
every interval; overlapping passes are prevented by singleton scheduling on
this instance and by per-event leases across instances. A small HTTP server
exposes /healthz and the summary of the last pass on /status.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().Int("interval", 0, "Minutes between passes (overrides CLUSTER_INTERVAL_MINUTES)")
	daemonCmd.Flags().Int("port", 0, "Status server port (overrides STATUS_PORT)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, pool, err := connect(logger)
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	interval := cfg.Daemon.IntervalMinutes
	if v := mustGetInt(cmd, "interval"); v > 0 {
		interval = v
	}
	port := cfg.Daemon.StatusPort
	if v := mustGetInt(cmd, "port"); v > 0 {
		port = v
	}

	eng := engine.New(
		postgres.NewFaceRepository(pool),
		postgres.NewLeaseRepository(pool),
		cfg.Clustering,
		logger,
	)

	server := web.NewServer(cfg.Daemon.StatusHost, port, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("status server stopped")
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	if _, err := scheduler.Every(interval).Minutes().Do(func() {
		summary, err := eng.RunOnce(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("clustering pass failed")
			return
		}
		server.SetSummary(summary)
	}); err != nil {
		return fmt.Errorf("scheduling clustering pass: %w", err)
	}

	logger.Info().Int("interval_minutes", interval).Msg("starting clustering daemon")
	scheduler.StartAsync()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down")
	cancel()
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("status server shutdown")
	}
	return nil
}

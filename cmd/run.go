package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kanta-app/cluster-faces/internal/engine"
	"github.com/kanta-app/cluster-faces/internal/store/postgres"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one clustering pass over all active events",
	Long: `Run a single clustering pass: discover active events, cluster each
event's face embeddings, reconcile cluster ids against the persisted state,
and write the assignments back. Exits after the pass completes.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, pool, err := connect(logger)
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	eng := engine.New(
		postgres.NewFaceRepository(pool),
		postgres.NewLeaseRepository(pool),
		cfg.Clustering,
		logger,
	)

	summary, err := eng.RunOnce(cmd.Context())
	if err != nil {
		return fmt.Errorf("clustering pass: %w", err)
	}

	fmt.Printf("Pass finished in %s: %d processed, %d skipped, %d failed\n",
		summary.Duration.Round(time.Millisecond), summary.Processed, summary.Skipped, summary.Failed)
	if summary.Failed > 0 {
		return fmt.Errorf("%d event(s) failed", summary.Failed)
	}
	return nil
}

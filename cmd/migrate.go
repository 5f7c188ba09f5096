package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, pool, err := connect(newLogger())
		if err != nil {
			return err
		}
		defer func() { _ = pool.Close() }()

		applied, err := pool.MigrationsApplied(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing migrations: %w", err)
		}
		for _, name := range applied {
			fmt.Printf("  %s\n", name)
		}
		fmt.Printf("%d migration(s) applied\n", len(applied))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

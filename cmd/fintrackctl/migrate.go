package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long:  "Open the SQLite database, which applies every pending migration, and report readiness.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.repo.Ping(ctx); err != nil {
					return fmt.Errorf("ping database: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", a.cfg.SQLiteDBPath)
				return nil
			})
		},
	}
}

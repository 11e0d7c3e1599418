package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/worker"
)

func mirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Maintain the Google Sheets transaction mirror",
	}
	cmd.AddCommand(mirrorReconcileCmd())
	return cmd
}

func mirrorReconcileCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Append transactions of a month that are missing from the spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := time.Now().UTC()
			if month != "" {
				t, err := time.Parse("2006-01", month)
				if err != nil {
					return fmt.Errorf("invalid --month %q, expected YYYY-MM", month)
				}
				target = t
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				client, err := cli.NewSheetsMirror(ctx, a.cfg)
				if err != nil {
					return err
				}
				if client == nil {
					return errors.New("GOOGLE_SPREADSHEET_ID is not set")
				}
				w := worker.NewSyncWorker(a.svc.Transactions, nil, client)
				added, err := w.ReconcileMonth(ctx, target.Year(), target.Month())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows added\n", target.Format("2006-01"), added)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default current month)")
	return cmd
}

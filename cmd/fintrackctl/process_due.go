package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
)

func processDueCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "process-due",
		Short: "Materialize recurring transactions due on a date",
		Long: `Create one transaction for every active recurring template whose next
occurrence is on or before the given date (default today, UTC), then advance
each template by one period. Running it again for the same date creates
nothing new.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := core.DateOf(time.Now())
			if date != "" {
				d, err := core.ParseDate(date)
				if err != nil {
					return err
				}
				target = d
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				result, err := a.svc.Processor.ProcessDue(ctx, target)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "processing date as YYYY-MM-DD (default today)")
	return cmd
}

package main

import (
	"context"

	"github.com/spf13/cobra"
)

func ratesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Manage exchange rates",
	}
	cmd.AddCommand(ratesRefreshCmd())
	return cmd
}

func ratesRefreshCmd() *cobra.Command {
	var base string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the latest rates from the provider and store them for today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				b := base
				if b == "" {
					b = a.cfg.ExchangeRateBaseCurrency
				}
				result, err := a.svc.Rates.RefreshRates(ctx, b)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "base currency (default EXCHANGE_RATE_BASE_CURRENCY)")
	return cmd
}

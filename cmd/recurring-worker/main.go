package main

import (
	"os"

	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

// recurring-worker runs the daily schedule: recurring transaction
// materialization and the exchange-rate refresh, at the times held in
// app_settings.
func main() {
	cfg, logger, repo, err := cli.Bootstrap(applog.ComponentScheduler)
	if err != nil {
		logger.Error("Startup failed", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, events := cli.ConnectAMQP(cfg, logger)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	svc := cli.BuildServices(cfg, repo, events)
	scheduler := services.NewScheduler(svc.Settings, cfg.SchedulerTick, cfg.SchedulerJobTimeout,
		services.RecurringJob(svc.Processor),
		services.ExchangeRateJob(svc.Rates, cfg.ExchangeRateBaseCurrency),
	)

	ctx, stop := cli.SignalContext()
	defer stop()

	logger.Info("Starting recurring-worker",
		"tick", cfg.SchedulerTick,
		"job_timeout", cfg.SchedulerJobTimeout,
		"rate_base", cfg.ExchangeRateBaseCurrency)

	if err := scheduler.Run(ctx); err != nil {
		logger.Error("Recurring-worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Recurring-worker shutdown complete")
}

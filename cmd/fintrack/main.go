package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
)

func main() {
	cfg, logger, repo, err := cli.Bootstrap(applog.ComponentApp)
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
	svc.Caches.StartCleanup(5 * time.Minute)
	defer svc.Caches.Stop()

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:           net.JoinHostPort("", cfg.Port),
		APIPrefix:      cfg.APIPrefix,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPM:   cfg.RateLimitRPM,
		TrustedProxies: cfg.TrustedProxies,
		RateBase:       cfg.ExchangeRateBaseCurrency,
		Logger:         logger,
		Ready:          repo.Ping,
	}, apphttp.Services{
		Categories:   svc.Categories,
		Transactions: svc.Transactions,
		Recurring:    svc.Recurring,
		Processor:    svc.Processor,
		Budgets:      svc.Budgets,
		Rates:        svc.Rates,
		Settings:     svc.Settings,
		Tasks:        svc.Tasks,
		CSV:          svc.CSV,
		Analytics:    svc.Analytics,
	})
	if err != nil {
		logger.Error("Failed to configure HTTP server", "error", err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting fintrack API",
			"addr", srv.Addr,
			"api_prefix", cfg.APIPrefix,
			"amqp", amqpClient != nil)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}

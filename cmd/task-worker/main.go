package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/worker"
)

const reconcileInterval = time.Hour

// task-worker runs background tasks. It polls task_results, reacts to
// task.enqueued messages immediately and mirrors created transactions to
// Google Sheets when a spreadsheet is configured.
func main() {
	cfg, logger, repo, err := cli.Bootstrap(applog.ComponentWorker)
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

	ctx, stop := cli.SignalContext()
	defer stop()

	var mirror worker.Mirror
	client, err := cli.NewSheetsMirror(ctx, cfg)
	switch {
	case err != nil:
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	case client != nil:
		mirror = client
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	default:
		logger.Info("Google Sheets mirror disabled, no GOOGLE_SPREADSHEET_ID provided")
	}
	syncWorker := worker.NewSyncWorker(svc.Transactions, svc.TaskProcessor, mirror)

	if err := svc.TaskProcessor.Start(ctx); err != nil {
		logger.Error("Failed to start task processor", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if amqpClient != nil {
		g.Go(func() error {
			err := amqpClient.Consume(gctx, syncWorker.HandleMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled, relying on task polling only")
	}
	if mirror != nil {
		g.Go(func() error {
			reconcileLoop(gctx, syncWorker, logger)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Task-worker stopped with error", "error", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := svc.TaskProcessor.Stop(stopCtx); err != nil {
		logger.Warn("Task processor did not stop cleanly", "error", err)
	}
	logger.Info("Task-worker shutdown complete")
}

// reconcileLoop backfills the current month on start and then hourly, in case
// messages were lost while the worker was down.
func reconcileLoop(ctx context.Context, w *worker.SyncWorker, logger *applog.Logger) {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()
	for {
		now := time.Now().UTC()
		if _, err := w.ReconcileMonth(ctx, now.Year(), now.Month()); err != nil {
			logger.ErrorContext(ctx, "Mirror reconciliation failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

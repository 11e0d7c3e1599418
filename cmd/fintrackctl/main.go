package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:           "fintrackctl",
	Short:         "Administrative commands for the fintrack backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(processDueCmd())
	rootCmd.AddCommand(ratesCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(mirrorCmd())
}

func main() {
	ctx, stop := cli.SignalContext()
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is what a command needs to do its work.
type app struct {
	cfg    *config.Config
	logger *applog.Logger
	repo   *storage.SQLiteRepository
	svc    *cli.Services
}

// openApp opens the database and wires the services. Commands run without
// AMQP so that one-off maintenance never floods the queue.
func openApp() (*app, error) {
	cfg, logger, repo, err := cli.Bootstrap(applog.ComponentCLI)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		repo:   repo,
		svc:    cli.BuildServices(cfg, repo, nil),
	}, nil
}

func (a *app) Close() error {
	return a.repo.Close()
}

// withApp runs fn with an opened app and closes it afterwards.
func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

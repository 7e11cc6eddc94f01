package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/cli"
	applog "ledger/internal/log"
	"ledger/internal/mirror/google"
	"ledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)

	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.MirrorEnabled() {
		logger.Error("Mirror worker requires AMQP_URL and GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sheets, err := google.NewClient(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	mirrorWorker := worker.NewMirrorWorker(repo, sheets, sheets)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqp.ConsumeWithReconnect(gctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			func(msg *amqp.LedgerEventMessage) error {
				return mirrorWorker.HandleEvent(gctx, msg)
			})
	})

	g.Go(func() error {
		return mirrorWorker.RunSweep(gctx, cfg.SweepInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

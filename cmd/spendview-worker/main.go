package main

import (
	"context"
	"os"
	"time"

	"spendview/internal/amqp"
	"spendview/internal/cli"
	"spendview/internal/export"
	gsheet "spendview/internal/export/google"
	"spendview/internal/services"
	"spendview/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting spendview-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	analytics := services.NewAnalyticsService(repo, cfg.CreditCardMethod, cfg.QueryTimeout, cfg.CacheTTL)
	defer analytics.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Google Sheets export is optional
	var exporter export.StatementWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	w := worker.NewStatementWorker(analytics, amqpClient, amqpClient, exporter, cfg.StatementInterval)
	logger.Info("Statement worker running", "interval", cfg.StatementInterval)

	if err := w.Run(ctx); err != nil && !worker.IsShutdown(err) {
		logger.Error("Statement worker failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

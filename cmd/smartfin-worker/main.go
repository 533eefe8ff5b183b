package main

import (
	"smartfin/internal/amqp"
	"smartfin/internal/cli"
	"smartfin/internal/ledger/google"
	"smartfin/internal/log"
	"smartfin/internal/services"
	"smartfin/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting smartfin-worker", log.FieldOperation, log.OpStartup)
	cli.MustValidate(logger, cfg.ValidateWorker)
	loc, _ := cfg.Location()

	ctx, stop := cli.ShutdownContext()
	defer stop()

	// The API server writes rows and their sync state to this database
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sheet, err := google.New(ctx, google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		cli.Exit(logger, "Failed to initialize Google Sheets client", err)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	broker, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Exit(logger, "Failed to initialize AMQP client", err)
	}
	defer broker.Close()

	processor := services.NewSyncProcessor(repo, sheet, services.SyncProcessorConfig{BatchSize: cfg.SyncBatchSize})
	ledgerSvc := services.NewLedgerService(repo, services.WithLogger(logger.WithComponent(log.ComponentLedger)))

	syncWorker := worker.NewSyncWorker(processor, broker, worker.Options{
		Schedule: cfg.SyncSchedule,
		Location: loc,
		Overdue:  services.NewOverdueProcessor(ledgerSvc),
		Header:   sheet,
	})

	// Rows written while the worker was down are still pending
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	if err := syncWorker.Run(ctx); err != nil {
		cli.Exit(logger, "Sync worker stopped", err)
	}
	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
}

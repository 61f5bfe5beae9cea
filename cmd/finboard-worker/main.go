package main

import (
	"context"
	"os"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/cli"
	"finboard/internal/log"
	"finboard/internal/services"
	gsheet "finboard/internal/sheets/google"
	"finboard/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger(nil, log.ComponentWorker).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting finboard-worker")

	if !cfg.ExportEnabled() {
		logger.Error("Export disabled - set GOOGLE_SPREADSHEET_ID to run the worker")
		os.Exit(1)
	}
	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend is per process; the worker only sees its own seed data")
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	store, err := cli.OpenBackend(startCtx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize storage backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	exporter, err := gsheet.NewExporter(startCtx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.CredentialsFile(),
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	processor := services.NewExportProcessor(store, exporter, services.ExportProcessorConfig{
		PollInterval: cfg.ExportInterval,
		BatchSize:    cfg.ExportBatchSize,
	})

	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		consumer = client
	} else {
		logger.Info("AMQP disabled - exporting on the periodic sweep only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// On startup, export any rows recorded while the worker was down
	if n, err := processor.Sweep(ctx); err != nil {
		logger.Error("Startup export sweep failed", log.FieldError, err)
	} else if n > 0 {
		logger.Info("Startup export sweep finished", log.FieldCount, n)
	}

	if err := worker.NewExportWorker(processor, consumer).Run(ctx); err != nil {
		logger.Error("Export worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}

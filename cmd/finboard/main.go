package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/backend"
	"finboard/internal/cli"
	"finboard/internal/core"
	apphttp "finboard/internal/http"
	"finboard/internal/log"
	"finboard/internal/ports"
	"finboard/internal/services"
	"finboard/internal/snapshot"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger(nil, log.ComponentApp).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := cli.OpenBackend(startCtx, cfg, logger)
	cancelStart()
	if err != nil {
		logger.Error("Failed to initialize storage backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// Events are optional: without AMQP_URL recorded transactions stay local.
	var publisher ports.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = client
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	loader := snapshot.New(store, cfg.SnapshotRefresh, logger)
	txService := services.NewTransactionService(store, publisher)
	recorded := log.NewStructuredLogger(logger.WithComponent(log.ComponentHTTP))
	txService.OnRecord(func(tx core.Transaction) {
		recorded.LogTransactionRecorded(context.Background(), tx.ID, tx.Name, tx.Amount.Cents, tx.Category)
	})

	deps := apphttp.Deps{
		Snapshot: loader,
		Recorder: txService,
		Pots:     store,
		Budgets:  store,
		Editor:   store,
	}
	if p, ok := store.(backend.Pinger); ok {
		deps.Ready = p.Ping
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerIP,
		CacheTTL:           cfg.CacheTTL,
		DueSoonDays:        cfg.DueSoonDays,
		Logger:             logger,
	}, deps)
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		loader.Stop()
		if err := txService.Close(); err != nil {
			logger.Error("Failed to close transaction service", log.FieldError, err)
		}
	})

	loader.Start(ctx)

	logger.Info("Starting finboard server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

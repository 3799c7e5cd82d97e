package main

import (
	"context"
	"errors"
	"os"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"subtrack/internal/amqp"
	"subtrack/internal/backend"
	"subtrack/internal/cli"
	"subtrack/internal/config"
	"subtrack/internal/log"
	"subtrack/internal/worker"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Failed to load configuration", log.FieldError, err)
		return err
	}

	logger, err := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker, os.Stdout)
	if err != nil {
		logger = log.New(log.Config{Level: log.DefaultConfig().Level, Component: log.ComponentWorker})
		logger.Warn("Invalid log level, using info", log.FieldError, err)
	}

	logger.Info("Starting subtrack-worker", "version", cli.Version())

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		return err
	}
	if cfg.AMQPURL == "" {
		err := errors.New("AMQP_URL is required for the worker")
		logger.Error("Configuration validation failed", log.FieldError, err)
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid time zone", log.FieldError, err, "timezone", cfg.Timezone)
		return err
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	store, closeStore, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize store", log.FieldError, err, "backend", cfg.DataBackend)
		return err
	}
	defer closeStore()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		return err
	}
	writer, err := backend.NewFactory(logger.WithComponent(log.ComponentSheets).Slog()).CreateScheduleWriter(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize schedule export", log.FieldError, err, "sheets_backend", cfg.SheetsBackend)
		return err
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return err
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(store, store, writer.Writer, worker.Config{
		ResyncInterval: cfg.ResyncInterval,
		HorizonMonths:  cfg.HorizonMonths,
		Location:       loc,
	})

	// Full resync on start, then every ResyncInterval
	if err := syncWorker.Start(ctx); err != nil {
		logger.Error("Failed to start sync worker", log.FieldError, err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeSubscriptionChanges(gctx, syncWorker.HandleChange)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	waitErr := g.Wait()
	if waitErr != nil {
		logger.Error("Message consumption failed", log.FieldError, waitErr)
	} else {
		logger.Info("Shutdown signal received")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := syncWorker.Stop(stopCtx); err != nil {
		logger.Error("Sync worker shutdown error", log.FieldError, err)
	}

	logger.Info("Worker stopped gracefully")
	return waitErr
}

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgeteer/internal/amqp"
	"budgeteer/internal/categorize"
	"budgeteer/internal/cli"
	"budgeteer/internal/log"
	"budgeteer/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting categorize worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	registry := categorize.NewRegistry(repo, repo, cfg.EngineCacheTTL)
	categorizeWorker := worker.NewCategorizeWorker(repo, registry, cfg.CategorizeBatchSize, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Sweep transactions that arrived while no worker was running.
	if err := categorizeWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup check failed", log.FieldError, err)
		// Keep consuming; the backlog stays queued.
	}

	go func() {
		if err := amqpClient.ConsumeCategorizeJobs(ctx, categorizeWorker.HandleJobMessage); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
}

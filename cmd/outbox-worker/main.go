package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"ruminster/internal/notification"
	"ruminster/internal/platform/config"
	"ruminster/internal/platform/logger"
	"ruminster/internal/platform/postgres"
)

// main runs the notification outbox worker: poll pending rows, publish to
// Kafka, mark published. The server writes rows transactionally; this process
// is the only publisher.
func main() {
	cfg := config.WorkerFromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if len(cfg.Kafka.Brokers) == 0 {
		log.Error("no kafka brokers configured")
		os.Exit(1)
	}

	publisher, err := notification.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		log.Error("failed to connect to kafka", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	worker := notification.NewWorker(
		notification.NewPostgresOutbox(db),
		publisher,
		log,
		notification.NewMetrics(),
		cfg.PollInterval,
		cfg.BatchSize,
	)

	log.Info("starting outbox worker",
		"poll_interval", cfg.PollInterval,
		"batch_size", cfg.BatchSize,
		"topic", cfg.Kafka.Topic,
	)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}

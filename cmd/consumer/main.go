package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tweetclassifier/internal/bootstrap"
	"tweetclassifier/internal/classifier"
	"tweetclassifier/internal/config"
	"tweetclassifier/internal/logging"
	"tweetclassifier/internal/queue"
	"tweetclassifier/internal/storage"
	"tweetclassifier/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("failed to load config", err)
	}
	logging.Init(cfg.Log.Format, cfg.Log.Level)

	if len(cfg.Queue.Brokers) == 0 {
		fatal("consumer needs a queue", errors.New("queue.brokers is empty"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		fatal("failed to connect to storage", err)
	}
	defer repo.Close()

	rdb, err := bootstrap.Cache(cfg.Redis)
	if err != nil {
		fatal("failed to connect to redis", err)
	}
	var cache classifier.Cache
	if rdb != nil {
		defer rdb.Close()
		cache = rdb
	}

	cl, err := bootstrap.Classifier(cfg.Models, cache)
	if err != nil {
		fatal("failed to load models", err)
	}

	consumer, err := queue.NewKafkaConsumer(cfg.Queue.Brokers, cfg.Queue.GroupID, cfg.Queue.Topic)
	if err != nil {
		fatal("failed to create consumer", err)
	}
	defer consumer.Close()

	nt, err := bootstrap.Notifier(cfg.Notifier)
	if err != nil {
		fatal("failed to create notifier", err)
	}
	alerts, _ := cfg.Notifier.Alerts()

	w := worker.NewConsumer(consumer, repo, cl, nt, nil, alerts)

	slog.Info("consumer started", "topic", cfg.Queue.Topic, "group", cfg.Queue.GroupID, "alerts", len(alerts))

	if err := w.Start(ctx); err != nil {
		fatal("consumer stopped", err)
	}
	slog.Info("shut down")
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

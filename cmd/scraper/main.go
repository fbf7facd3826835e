package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tweetclassifier/internal/config"
	"tweetclassifier/internal/logging"
	"tweetclassifier/internal/queue"
	"tweetclassifier/internal/scraper"
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
		fatal("scraper needs a queue", errors.New("queue.brokers is empty"))
	}
	if len(cfg.Scraper.Feeds) == 0 {
		fatal("scraper needs feeds", errors.New("scraper.feeds is empty"))
	}

	publisher, err := queue.NewKafka(cfg.Queue.Brokers, cfg.Queue.Topic)
	if err != nil {
		fatal("failed to create queue", err)
	}
	defer publisher.Close()

	w := worker.NewScraper(scraper.NewRSS(), publisher, cfg.Scraper)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("scraper started", "feeds", len(cfg.Scraper.Feeds), "topic", cfg.Queue.Topic)

	if err := w.Start(ctx); err != nil {
		fatal("scraper stopped", err)
	}
	slog.Info("shut down")
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tweetclassifier/internal/api"
	"tweetclassifier/internal/bootstrap"
	"tweetclassifier/internal/classifier"
	"tweetclassifier/internal/config"
	"tweetclassifier/internal/content"
	"tweetclassifier/internal/logging"
	"tweetclassifier/internal/scraper"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		fatal("failed to connect to storage", err)
	}
	defer repo.Close()

	if _, err := bootstrap.ImportDataset(ctx, repo, cfg.Resources.Dataset); err != nil {
		fatal("failed to import dataset", err)
	}

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

	pages := content.NewStore(cfg.Resources.Pages, cfg.Resources.Images, "/static")
	server := api.NewServer(cl, repo, repo, pages, cfg.Resources.Images)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Server.Port)
		if err := server.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Scraper.Enabled {
		publisher, consumer, err := bootstrap.Queue(cfg.Queue)
		if err != nil {
			fatal("failed to create queue", err)
		}
		defer publisher.Close()
		defer consumer.Close()

		nt, err := bootstrap.Notifier(cfg.Notifier)
		if err != nil {
			fatal("failed to create notifier", err)
		}
		alerts, _ := cfg.Notifier.Alerts()

		sw := worker.NewScraper(scraper.NewRSS(), publisher, cfg.Scraper)
		cw := worker.NewConsumer(consumer, repo, cl, nt, server, alerts)

		g.Go(func() error { return cw.Start(ctx) })
		g.Go(func() error { return sw.Start(ctx) })
	}

	slog.Info("app started", "models", len(cl.Models()), "default", cl.DefaultModel(), "feed", cfg.Scraper.Enabled)

	if err := g.Wait(); err != nil {
		fatal("app stopped", err)
	}
	slog.Info("shut down")
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

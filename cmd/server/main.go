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

	"tweetclassifier/internal/api"
	"tweetclassifier/internal/bootstrap"
	"tweetclassifier/internal/classifier"
	"tweetclassifier/internal/config"
	"tweetclassifier/internal/content"
	"tweetclassifier/internal/logging"
	"tweetclassifier/internal/storage"
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

	go func() {
		slog.Info("server starting", "addr", cfg.Server.Port)
		if err := server.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

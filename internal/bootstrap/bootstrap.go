// Package bootstrap builds the shared components the cmd binaries wire
// together from a loaded Config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"tweetclassifier/internal/classifier"
	"tweetclassifier/internal/config"
	"tweetclassifier/internal/dataset"
	"tweetclassifier/internal/model"
	"tweetclassifier/internal/notifier"
	"tweetclassifier/internal/queue"
	"tweetclassifier/internal/redis"
	"tweetclassifier/internal/storage"
)

// Classifier loads the encoder and builds the model registry. With
// models.preload every classifier is loaded now and any failure is returned.
func Classifier(cfg config.ModelsConfig, cache classifier.Cache) (*classifier.Service, error) {
	enc, err := model.LoadEncoder(cfg.Encoder)
	if err != nil {
		return nil, err
	}
	slog.Info("encoder loaded", "path", cfg.Encoder, "features", enc.Dim())

	specs := make([]model.Spec, len(cfg.Catalog))
	for i, m := range cfg.Catalog {
		specs[i] = model.Spec{Name: m.Name, Title: m.Title, Description: m.Description, Path: m.Path}
	}

	reg, err := model.NewRegistry(enc, specs)
	if err != nil {
		return nil, err
	}
	if cfg.Preload {
		if err := reg.Preload(); err != nil {
			return nil, err
		}
	}

	var opts []classifier.Option
	if cache != nil {
		opts = append(opts, classifier.WithCache(cache))
	}
	return classifier.NewService(reg, cfg.Default, opts...)
}

// Cache connects to Redis, or returns nil when no address is configured.
func Cache(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	c, err := redis.New(cfg.Addr, cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return c, nil
}

// ImportDataset copies the labelled CSV into the tweets table when the
// table is empty. A missing file is logged and skipped.
func ImportDataset(ctx context.Context, repo storage.TweetRepository, path string) (int, error) {
	n, err := repo.CountTweets(ctx, storage.TweetFilter{})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Debug("dataset already imported", "tweets", n)
		return 0, nil
	}

	tweets, err := dataset.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("dataset missing", "path", path)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if err := repo.SaveTweets(ctx, tweets); err != nil {
		return 0, err
	}
	slog.Info("dataset imported", "path", path, "tweets", len(tweets))
	return len(tweets), nil
}

// Notifier returns a Telegram notifier, or nil when no token is configured.
func Notifier(cfg config.NotifierConfig) (notifier.Notifier, error) {
	if cfg.TelegramToken == "" {
		return nil, nil
	}
	t, err := notifier.NewTelegram(cfg.TelegramToken, cfg.TelegramChatIDs)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Queue returns a Kafka publisher and consumer pair when brokers are
// configured, otherwise one in-process queue serving as both.
func Queue(cfg config.QueueConfig) (queue.Publisher, queue.Consumer, error) {
	if len(cfg.Brokers) == 0 {
		m := queue.NewMemory(256)
		return m, m, nil
	}

	pub, err := queue.NewKafka(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, nil, err
	}
	con, err := queue.NewKafkaConsumer(cfg.Brokers, cfg.GroupID, cfg.Topic)
	if err != nil {
		pub.Close()
		return nil, nil, err
	}
	return pub, con, nil
}

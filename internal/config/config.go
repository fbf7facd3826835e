package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"tweetclassifier/internal/domain"
)

// EnvPrefix marks environment overrides. A double underscore separates
// levels: TWEETCLF_NOTIFIER__TELEGRAM_TOKEN sets notifier.telegram_token.
const EnvPrefix = "TWEETCLF_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Resources ResourcesConfig `koanf:"resources"`
	Models    ModelsConfig    `koanf:"models"`
	Storage   StorageConfig   `koanf:"storage"`
	Redis     RedisConfig     `koanf:"redis"`
	Scraper   ScraperConfig   `koanf:"scraper"`
	Queue     QueueConfig     `koanf:"queue"`
	Notifier  NotifierConfig  `koanf:"notifier"`
}

type ServerConfig struct {
	Port string `koanf:"port"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "text" or "json"
}

type ResourcesConfig struct {
	Dataset string `koanf:"dataset"`
	Pages   string `koanf:"pages"`
	Images  string `koanf:"images"`
}

type ModelsConfig struct {
	Encoder string        `koanf:"encoder"`
	Default string        `koanf:"default"`
	Preload bool          `koanf:"preload"`
	Catalog []ModelConfig `koanf:"catalog"`
}

type ModelConfig struct {
	Name        string `koanf:"name"`
	Title       string `koanf:"title"`
	Description string `koanf:"description"`
	Path        string `koanf:"path"`
}

type StorageConfig struct {
	Driver string `koanf:"driver"` // "sqlite" or "postgres"
	DSN    string `koanf:"dsn"`
}

type RedisConfig struct {
	Addr string        `koanf:"addr"`
	TTL  time.Duration `koanf:"ttl"`
}

type ScraperConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Feeds    []string `koanf:"feeds"`
	Schedule string   `koanf:"schedule"`
}

type QueueConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	GroupID string   `koanf:"group_id"`
}

type NotifierConfig struct {
	TelegramToken   string   `koanf:"telegram_token"`
	TelegramChatIDs []int64  `koanf:"telegram_chat_ids"`
	AlertLabels     []string `koanf:"alert_labels"`
}

// Defaults returns the configuration used for any key the file and
// environment leave unset.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Port: ":8080"},
		Log:    LogConfig{Level: "info", Format: "text"},
		Resources: ResourcesConfig{
			Dataset: "resources/train.csv",
			Pages:   "resources/pages",
			Images:  "resources/imgs",
		},
		Models: ModelsConfig{
			Encoder: "resources/models/vectorizer.json",
			Default: "logistic_regression",
			Catalog: []ModelConfig{
				{Name: "logistic_regression", Title: "Logistic Regression", Path: "resources/models/logistic_regression.json"},
				{Name: "linear_svc", Title: "Linear SVC", Path: "resources/models/linear_svc.json"},
				{Name: "sgd", Title: "SGD Classifier", Path: "resources/models/sgd.json"},
			},
		},
		Storage: StorageConfig{Driver: "sqlite", DSN: "tweets.db"},
		Redis:   RedisConfig{TTL: 24 * time.Hour},
		Scraper: ScraperConfig{Schedule: "@every 5m"},
		Queue:   QueueConfig{Topic: "tweets", GroupID: "tweetclassifier"},
	}
}

// Load layers config.yaml at path and TWEETCLF_ environment variables over
// Defaults. A .env file in the working directory is read first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := Defaults()
	if k.Exists("models.catalog") {
		cfg.Models.Catalog = nil
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("config: server.port is required")
	}
	if c.Models.Encoder == "" {
		return errors.New("config: models.encoder is required")
	}
	if len(c.Models.Catalog) == 0 {
		return errors.New("config: models.catalog must list at least one model")
	}

	found := false
	for _, m := range c.Models.Catalog {
		if m.Name == "" || m.Path == "" {
			return fmt.Errorf("config: model %+v needs a name and a path", m)
		}
		if m.Name == c.Models.Default {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("config: default model %q is not in the catalog", c.Models.Default)
	}

	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return errors.New("config: storage.dsn is required")
	}

	if c.Scraper.Enabled {
		if len(c.Scraper.Feeds) == 0 {
			return errors.New("config: scraper.feeds is required when the scraper is enabled")
		}
		if c.Scraper.Schedule == "" {
			return errors.New("config: scraper.schedule is required when the scraper is enabled")
		}
	}

	if _, err := c.Notifier.Alerts(); err != nil {
		return err
	}
	return nil
}

// Alerts resolves notifier.alert_labels to sentiments.
func (n NotifierConfig) Alerts() ([]domain.Sentiment, error) {
	out := make([]domain.Sentiment, 0, len(n.AlertLabels))
	for _, name := range n.AlertLabels {
		s, ok := domain.ParseSentiment(name)
		if !ok {
			return nil, fmt.Errorf("config: unknown alert label %q", name)
		}
		out = append(out, s)
	}
	return out, nil
}

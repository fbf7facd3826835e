package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetclassifier/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "logistic_regression", cfg.Models.Default)
	assert.Len(t, cfg.Models.Catalog, 3)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.False(t, cfg.Scraper.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: ":9090"
log:
  level: debug
  format: json
models:
  encoder: models/enc.json
  default: svc
  preload: true
  catalog:
    - name: svc
      title: Support Vector
      path: models/svc.json
storage:
  driver: postgres
  dsn: postgres://localhost/tweets
redis:
  addr: localhost:6379
  ttl: 10m
scraper:
  enabled: true
  schedule: "@every 1m"
  feeds:
    - https://example.com/rss
notifier:
  telegram_chat_ids: [42, 43]
  alert_labels: [Anti, News]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Models.Preload)
	require.Len(t, cfg.Models.Catalog, 1)
	assert.Equal(t, ModelConfig{Name: "svc", Title: "Support Vector", Path: "models/svc.json"}, cfg.Models.Catalog[0])
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, []string{"https://example.com/rss"}, cfg.Scraper.Feeds)
	assert.Equal(t, []int64{42, 43}, cfg.Notifier.TelegramChatIDs)

	alerts, err := cfg.Notifier.Alerts()
	require.NoError(t, err)
	assert.Equal(t, []domain.Sentiment{domain.SentimentAnti, domain.SentimentNews}, alerts)

	// Untouched sections keep their defaults.
	assert.Equal(t, "resources/train.csv", cfg.Resources.Dataset)
	assert.Equal(t, "tweets", cfg.Queue.Topic)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TWEETCLF_SERVER__PORT", ":7000")
	t.Setenv("TWEETCLF_NOTIFIER__TELEGRAM_TOKEN", "secret")
	t.Setenv("TWEETCLF_QUEUE__GROUP_ID", "group-a")

	cfg, err := Load(writeConfig(t, "server:\n  port: \":9090\"\n"))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Notifier.TelegramToken)
	assert.Equal(t, "group-a", cfg.Queue.GroupID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no port", func(c *Config) { c.Server.Port = "" }},
		{"no encoder", func(c *Config) { c.Models.Encoder = "" }},
		{"empty catalog", func(c *Config) { c.Models.Catalog = nil }},
		{"default not in catalog", func(c *Config) { c.Models.Default = "bayes" }},
		{"model without path", func(c *Config) { c.Models.Catalog[0].Path = "" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }},
		{"no dsn", func(c *Config) { c.Storage.DSN = "" }},
		{"scraper without feeds", func(c *Config) { c.Scraper.Enabled = true }},
		{"unknown alert label", func(c *Config) { c.Notifier.AlertLabels = []string{"Angry"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.port", envKey("TWEETCLF_SERVER__PORT"))
	assert.Equal(t, "notifier.telegram_token", envKey("TWEETCLF_NOTIFIER__TELEGRAM_TOKEN"))
}

package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"tweetclassifier/internal/config"
	"tweetclassifier/internal/logging"
	"tweetclassifier/internal/queue"
	"tweetclassifier/internal/scraper"
)

// Scraper polls the configured feeds on a cron schedule and publishes
// tweets it has not seen before.
type Scraper struct {
	scraper   scraper.Scraper
	publisher queue.Publisher
	feeds     []string
	schedule  string
	seen      map[string]bool
}

func NewScraper(s scraper.Scraper, p queue.Publisher, cfg config.ScraperConfig) *Scraper {
	return &Scraper{
		scraper:   s,
		publisher: p,
		feeds:     cfg.Feeds,
		schedule:  cfg.Schedule,
		seen:      make(map[string]bool),
	}
}

// Start scrapes once immediately, then on every tick of the schedule until
// ctx is cancelled.
func (w *Scraper) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.schedule, func() { w.ScrapeAll(ctx) }); err != nil {
		return fmt.Errorf("worker: schedule %q: %w", w.schedule, err)
	}

	w.ScrapeAll(ctx)
	c.Start()
	slog.Info("scraper scheduled", "schedule", w.schedule, "feeds", len(w.feeds))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (w *Scraper) ScrapeAll(ctx context.Context) {
	for _, feed := range w.feeds {
		if ctx.Err() != nil {
			return
		}

		tweets, err := w.scraper.Scrape(ctx, feed)
		if err != nil {
			slog.Error("scrape failed", "feed", feed, "error", err)
			continue
		}

		newCount := 0
		dupCount := 0

		for _, t := range tweets {
			if w.seen[t.ID] {
				dupCount++
				continue
			}

			if err := w.publisher.Publish(ctx, t); err != nil {
				slog.Error("publish failed", "feed", feed, "id", t.ID, "error", err)
				continue
			}
			w.seen[t.ID] = true
			newCount++
			slog.Debug("queued", "author", t.Author, "text", logging.Truncate(t.Content, 60))
		}

		slog.Info("scrape", "feed", feed, "fetched", len(tweets), "new", newCount, "duplicates", dupCount, "seen_total", len(w.seen))
	}
}

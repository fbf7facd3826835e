package scraper

import (
	"context"

	"tweetclassifier/internal/domain"
)

type Scraper interface {
	Scrape(ctx context.Context, feedURL string) ([]domain.Tweet, error)
}

package storage

import (
	"context"

	"tweetclassifier/internal/domain"
)

// TweetFilter selects a page of the labelled dataset. A nil Sentiment
// matches every label.
type TweetFilter struct {
	Sentiment *domain.Sentiment
	Limit     int
	Offset    int
}

type TweetRepository interface {
	SaveTweets(ctx context.Context, tweets []domain.Tweet) error
	FindTweets(ctx context.Context, f TweetFilter) ([]domain.Tweet, error)
	CountTweets(ctx context.Context, f TweetFilter) (int, error)
	CountBySentiment(ctx context.Context) (map[domain.Sentiment]int, error)
}

type PredictionRepository interface {
	SavePrediction(ctx context.Context, p domain.Prediction) error
	FindPrediction(ctx context.Context, id string) (*domain.Prediction, error)
	RecentPredictions(ctx context.Context, limit int) ([]domain.Prediction, error)
}

type Repository interface {
	TweetRepository
	PredictionRepository
	Close() error
}

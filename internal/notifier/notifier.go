package notifier

import (
	"context"

	"tweetclassifier/internal/domain"
)

type Notification struct {
	Tweet      domain.Tweet
	Prediction domain.Prediction
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

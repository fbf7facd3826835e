package queue

import (
	"context"

	"tweetclassifier/internal/domain"
)

type Publisher interface {
	Publish(ctx context.Context, t domain.Tweet) error
	Close() error
}

// Handler processes one consumed tweet. A non-nil error leaves the message
// unacknowledged where the backend supports it.
type Handler func(ctx context.Context, t domain.Tweet) error

type Consumer interface {
	Consume(ctx context.Context, h Handler) error
	Close() error
}

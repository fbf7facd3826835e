package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"tweetclassifier/internal/domain"
)

// Client caches predictions. Inference is deterministic, so a cached entry
// stays valid for as long as the model artifact is unchanged.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

type cachedPrediction struct {
	Label      int     `json:"label"`
	Confidence float64 `json:"confidence"`
}

func New(addr string, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetPrediction returns the cached label and confidence for text under
// model. ok is false on a cache miss.
func (c *Client) GetPrediction(ctx context.Context, model, text string) (label domain.Sentiment, confidence float64, ok bool, err error) {
	raw, err := c.rdb.Get(ctx, predictionKey(model, text)).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}

	var cp cachedPrediction
	if err := json.Unmarshal(raw, &cp); err != nil {
		return 0, 0, false, err
	}
	return domain.Sentiment(cp.Label), cp.Confidence, true, nil
}

func (c *Client) SetPrediction(ctx context.Context, model, text string, label domain.Sentiment, confidence float64) error {
	raw, err := json.Marshal(cachedPrediction{Label: int(label), Confidence: confidence})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, predictionKey(model, text), raw, c.ttl).Err()
}

func predictionKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "prediction:" + model + ":" + hex.EncodeToString(sum[:])
}

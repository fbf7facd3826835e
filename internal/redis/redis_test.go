package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetclassifier/internal/domain"
)

func newTestClient(t *testing.T, ttl time.Duration) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := New(mr.Addr(), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c, mr
}

func TestPredictionKey(t *testing.T) {
	k := predictionKey("sgd", "climate change")

	assert.True(t, strings.HasPrefix(k, "prediction:sgd:"))
	assert.Len(t, strings.TrimPrefix(k, "prediction:sgd:"), 64)
	assert.Equal(t, k, predictionKey("sgd", "climate change"))
	assert.NotEqual(t, k, predictionKey("linear_svc", "climate change"))
	assert.NotEqual(t, k, predictionKey("sgd", "climate  change"))
}

func TestGetPredictionMiss(t *testing.T) {
	c, _ := newTestClient(t, time.Hour)

	_, _, ok, err := c.GetPrediction(context.Background(), "sgd", "never seen")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetGetPrediction(t *testing.T) {
	c, _ := newTestClient(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.SetPrediction(ctx, "sgd", "climate change is a hoax", domain.SentimentAnti, 0.8))

	label, confidence, ok, err := c.GetPrediction(ctx, "sgd", "climate change is a hoax")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.SentimentAnti, label)
	assert.InDelta(t, 0.8, confidence, 1e-9)

	_, _, ok, err = c.GetPrediction(ctx, "linear_svc", "climate change is a hoax")
	require.NoError(t, err)
	assert.False(t, ok, "entries are scoped per model")
}

func TestPredictionExpires(t *testing.T) {
	c, mr := newTestClient(t, 10*time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetPrediction(ctx, "sgd", "text", domain.SentimentPro, 0.6))
	assert.Equal(t, 10*time.Minute, mr.TTL(predictionKey("sgd", "text")))

	mr.FastForward(11 * time.Minute)

	_, _, ok, err := c.GetPrediction(ctx, "sgd", "text")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetPredictionCorrupt(t *testing.T) {
	c, mr := newTestClient(t, time.Hour)

	require.NoError(t, mr.Set(predictionKey("sgd", "text"), "{not json"))

	_, _, ok, err := c.GetPrediction(context.Background(), "sgd", "text")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(addr, time.Hour)
	assert.Error(t, err)
}

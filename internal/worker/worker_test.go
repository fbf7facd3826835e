package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetclassifier/internal/classifier"
	"tweetclassifier/internal/config"
	"tweetclassifier/internal/domain"
	"tweetclassifier/internal/model"
	"tweetclassifier/internal/notifier"
	"tweetclassifier/internal/queue"
)

type fakeScraper struct {
	tweets map[string][]domain.Tweet
	errs   map[string]error
}

func (f *fakeScraper) Scrape(_ context.Context, feed string) ([]domain.Tweet, error) {
	if err := f.errs[feed]; err != nil {
		return nil, err
	}
	return f.tweets[feed], nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	ids   []string
	fails map[string]bool
}

func (p *recordingPublisher) Publish(_ context.Context, t domain.Tweet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fails[t.ID] {
		delete(p.fails, t.ID)
		return errors.New("broker unavailable")
	}
	p.ids = append(p.ids, t.ID)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestScrapeAllSkipsSeen(t *testing.T) {
	s := &fakeScraper{
		tweets: map[string][]domain.Tweet{
			"a": {{ID: "1"}, {ID: "2"}},
			"b": {{ID: "2"}, {ID: "3"}},
		},
		errs: map[string]error{"broken": errors.New("timeout")},
	}
	pub := &recordingPublisher{fails: map[string]bool{"3": true}}
	w := NewScraper(s, pub, config.ScraperConfig{Feeds: []string{"a", "broken", "b"}, Schedule: "@every 1m"})

	w.ScrapeAll(context.Background())
	assert.Equal(t, []string{"1", "2"}, pub.ids)

	// The failed publish is retried on the next run.
	w.ScrapeAll(context.Background())
	assert.Equal(t, []string{"1", "2", "3"}, pub.ids)
}

func TestScraperStartInvalidSchedule(t *testing.T) {
	w := NewScraper(&fakeScraper{}, &recordingPublisher{}, config.ScraperConfig{Schedule: "whenever"})
	assert.Error(t, w.Start(context.Background()))
}

func TestScraperStartStopsOnCancel(t *testing.T) {
	pub := &recordingPublisher{}
	s := &fakeScraper{tweets: map[string][]domain.Tweet{"a": {{ID: "1"}}}}
	w := NewScraper(s, pub, config.ScraperConfig{Feeds: []string{"a"}, Schedule: "@every 1h"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.ids) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

type fakeClassifier struct {
	labels map[string]domain.Sentiment
}

func (f *fakeClassifier) Classify(_ context.Context, modelName, text string) (*classifier.Result, error) {
	label, ok := f.labels[text]
	if !ok {
		return nil, classifier.ErrEmptyText
	}
	return &classifier.Result{Model: "logistic_regression", Label: label, Confidence: 0.9}, nil
}

func (f *fakeClassifier) Models() []model.Spec   { return nil }
func (f *fakeClassifier) DefaultModel() string { return "logistic_regression" }

type memRepo struct {
	mu    sync.Mutex
	preds []domain.Prediction
}

func (r *memRepo) SavePrediction(_ context.Context, p domain.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preds = append(r.preds, p)
	return nil
}

func (r *memRepo) FindPrediction(context.Context, string) (*domain.Prediction, error) { return nil, nil }

func (r *memRepo) RecentPredictions(context.Context, int) ([]domain.Prediction, error) {
	return r.preds, nil
}

type fakeNotifier struct {
	sent []notifier.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, n notifier.Notification) error {
	f.sent = append(f.sent, n)
	return nil
}

type fakeBroadcaster struct {
	msgs []string
}

func (f *fakeBroadcaster) Broadcast(msg string) { f.msgs = append(f.msgs, msg) }

func TestConsumerHandlesTweets(t *testing.T) {
	q := queue.NewMemory(8)
	repo := &memRepo{}
	cl := &fakeClassifier{labels: map[string]domain.Sentiment{
		"hoax":   domain.SentimentAnti,
		"report": domain.SentimentNews,
		"act":    domain.SentimentPro,
	}}
	nt := &fakeNotifier{}
	b := &fakeBroadcaster{}

	w := NewConsumer(q, repo, cl, nt, b, []domain.Sentiment{domain.SentimentAnti})
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	ctx := context.Background()
	for _, text := range []string{"hoax", "unclassifiable", "report", "act"} {
		require.NoError(t, q.Publish(ctx, domain.Tweet{ID: text, Author: "@someone", Content: text, Source: domain.SourceFeed}))
	}
	require.NoError(t, q.Close())
	require.NoError(t, w.Start(ctx))

	require.Len(t, repo.preds, 3)
	first := repo.preds[0]
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "hoax", first.Text)
	assert.Equal(t, domain.SentimentAnti, first.Label)
	assert.Equal(t, domain.SourceFeed, first.Source)
	assert.Equal(t, "@someone", first.Author)
	assert.Equal(t, now, first.CreatedAt)

	require.Len(t, b.msgs, 3)
	assert.Contains(t, b.msgs[0], `class="tag anti"`)
	assert.Contains(t, b.msgs[1], ">News<")

	require.Len(t, nt.sent, 1)
	assert.Equal(t, "hoax", nt.sent[0].Tweet.Content)
}

func TestConsumerWithoutNotifierOrFeed(t *testing.T) {
	q := queue.NewMemory(1)
	repo := &memRepo{}
	cl := &fakeClassifier{labels: map[string]domain.Sentiment{"hoax": domain.SentimentAnti}}

	w := NewConsumer(q, repo, cl, nil, nil, []domain.Sentiment{domain.SentimentAnti})

	require.NoError(t, w.handleTweet(context.Background(), domain.Tweet{ID: "1", Content: "hoax"}))
	assert.Len(t, repo.preds, 1)
}

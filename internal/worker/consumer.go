package worker

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tweetclassifier/internal/classifier"
	"tweetclassifier/internal/domain"
	"tweetclassifier/internal/logging"
	"tweetclassifier/internal/notifier"
	"tweetclassifier/internal/queue"
	"tweetclassifier/internal/storage"
)

type Broadcaster interface {
	Broadcast(msg string)
}

// Consumer classifies queued feed tweets with the default model, records
// them, pushes them to live viewers and raises alerts for watched labels.
type Consumer struct {
	consumer    queue.Consumer
	repo        storage.PredictionRepository
	classifier  classifier.Classifier
	notifier    notifier.Notifier
	broadcaster Broadcaster
	alerts      map[domain.Sentiment]bool
	feedTmpl    *template.Template
	now         func() time.Time
}

// NewConsumer wires the consumer. n and b may be nil when no notifier or
// live feed is attached.
func NewConsumer(c queue.Consumer, r storage.PredictionRepository, cl classifier.Classifier, n notifier.Notifier, b Broadcaster, alerts []domain.Sentiment) *Consumer {
	tmpl := template.Must(template.New("feed-item").Parse(`
<div class="item {{.Class}}">
    <div class="item-head">
        <div class="item-author">{{.Author}}</div>
        <div class="item-time">{{.TimeAgo}}</div>
    </div>
    <div class="item-body">{{.Content}}</div>
    <div class="tag {{.Class}}">{{.Label}}</div>
</div>`))

	watch := make(map[domain.Sentiment]bool, len(alerts))
	for _, s := range alerts {
		watch[s] = true
	}

	return &Consumer{
		consumer:    c,
		repo:        r,
		classifier:  cl,
		notifier:    n,
		broadcaster: b,
		alerts:      watch,
		feedTmpl:    tmpl,
		now:         time.Now,
	}
}

func (w *Consumer) Start(ctx context.Context) error {
	return w.consumer.Consume(ctx, w.handleTweet)
}

func (w *Consumer) handleTweet(ctx context.Context, t domain.Tweet) error {
	slog.Debug("received", "author", t.Author, "text", logging.Truncate(t.Content, 60))

	res, err := w.classifier.Classify(ctx, "", t.Content)
	if err != nil {
		// Dropped: classification failures are not retried.
		slog.Error("classify failed", "id", t.ID, "error", err)
		return nil
	}

	p := domain.Prediction{
		ID:         uuid.NewString(),
		Model:      res.Model,
		Text:       t.Content,
		Label:      res.Label,
		Confidence: res.Confidence,
		Source:     domain.SourceFeed,
		Author:     t.Author,
		CreatedAt:  w.now().UTC(),
	}

	if err := w.repo.SavePrediction(ctx, p); err != nil {
		slog.Error("save prediction failed", "id", p.ID, "error", err)
		return err
	}

	view := map[string]string{
		"Author":  t.Author,
		"Content": t.Content,
		"TimeAgo": "just now",
		"Label":   p.Label.String(),
		"Class":   p.Label.Slug(),
	}

	var buf bytes.Buffer
	if w.broadcaster != nil && w.feedTmpl.Execute(&buf, view) == nil {
		w.broadcaster.Broadcast(buf.String())
	}

	if w.alerts[p.Label] && w.notifier != nil {
		slog.Info("alert", "label", p.Label.String(), "author", t.Author, "confidence", p.Confidence)

		if err := w.notifier.Notify(ctx, notifier.Notification{
			Tweet:      t,
			Prediction: p,
		}); err != nil {
			slog.Error("notify failed", "error", err)
		}
	}

	return nil
}

package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tweetclassifier/internal/domain"
	"tweetclassifier/internal/logging"
	"tweetclassifier/internal/model"
)

var ErrEmptyText = errors.New("classifier: text is empty")

type Result struct {
	Model      string
	Label      domain.Sentiment
	Confidence float64 // zero when the model has no probability estimates
	Cached     bool
}

type Classifier interface {
	Classify(ctx context.Context, modelName, text string) (*Result, error)
	Models() []model.Spec
	DefaultModel() string
}

// Cache stores predictions keyed by model and text.
type Cache interface {
	GetPrediction(ctx context.Context, model, text string) (domain.Sentiment, float64, bool, error)
	SetPrediction(ctx context.Context, model, text string, label domain.Sentiment, confidence float64) error
}

type Option func(*Service)

func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// Service runs the encoder and the selected classifier for one text.
type Service struct {
	registry     *model.Registry
	defaultModel string
	cache        Cache
}

func NewService(reg *model.Registry, defaultModel string, opts ...Option) (*Service, error) {
	if _, ok := reg.Spec(defaultModel); !ok {
		return nil, fmt.Errorf("%w: default %q", model.ErrUnknownModel, defaultModel)
	}

	s := &Service{registry: reg, defaultModel: defaultModel}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Models() []model.Spec { return s.registry.Specs() }

func (s *Service) DefaultModel() string { return s.defaultModel }

// Classify predicts the sentiment of text with the named model, or the
// default model when modelName is empty.
func (s *Service) Classify(ctx context.Context, modelName, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if modelName == "" {
		modelName = s.defaultModel
	}
	if _, ok := s.registry.Spec(modelName); !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownModel, modelName)
	}

	if s.cache != nil {
		label, confidence, ok, err := s.cache.GetPrediction(ctx, modelName, text)
		if err != nil {
			slog.Warn("prediction cache read failed", "model", modelName, "error", err)
		} else if ok {
			return &Result{Model: modelName, Label: label, Confidence: confidence, Cached: true}, nil
		}
	}

	clf, err := s.registry.Get(modelName)
	if err != nil {
		return nil, fmt.Errorf("classifier: load %s: %w", modelName, err)
	}

	vec := s.registry.Encoder().Transform(text)
	label, err := clf.Predict(vec)
	if err != nil {
		return nil, fmt.Errorf("classifier: predict with %s: %w", modelName, err)
	}

	res := &Result{Model: modelName, Label: domain.Sentiment(label)}
	if clf.HasProbabilities() {
		probs, err := clf.Probabilities(vec)
		if err != nil {
			return nil, fmt.Errorf("classifier: probabilities with %s: %w", modelName, err)
		}
		for i, c := range clf.Classes() {
			if c == label {
				res.Confidence = probs[i]
			}
		}
	}

	slog.Debug("classify", "model", modelName, "label", res.Label.String(),
		"confidence", res.Confidence, "features", vec.NNZ(), "text", logging.Truncate(text, 60))

	if s.cache != nil {
		if err := s.cache.SetPrediction(ctx, modelName, text, res.Label, res.Confidence); err != nil {
			slog.Warn("prediction cache write failed", "model", modelName, "error", err)
		}
	}

	return res, nil
}

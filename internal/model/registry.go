package model

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"tweetclassifier/internal/domain"
)

var (
	ErrUnknownModel = errors.New("model: unknown model")
	ErrUnknownLabel = errors.New("model: classifier emits unknown label")
)

// Spec describes one selectable classifier.
type Spec struct {
	Name        string
	Title       string
	Description string
	Path        string
}

// Registry holds the shared encoder and loads classifiers on first use.
// Loaded classifiers are kept for the life of the process.
type Registry struct {
	encoder *Encoder
	specs   []Spec
	byName  map[string]Spec

	mu     sync.RWMutex
	loaded map[string]*Linear
	group  singleflight.Group
}

func NewRegistry(enc *Encoder, specs []Spec) (*Registry, error) {
	if enc == nil {
		return nil, errors.New("model: registry needs an encoder")
	}
	if len(specs) == 0 {
		return nil, errors.New("model: registry needs at least one model")
	}

	byName := make(map[string]Spec, len(specs))
	for _, s := range specs {
		if s.Name == "" || s.Path == "" {
			return nil, fmt.Errorf("model: spec %+v needs a name and a path", s)
		}
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("model: duplicate model name %q", s.Name)
		}
		byName[s.Name] = s
	}

	return &Registry{
		encoder: enc,
		specs:   specs,
		byName:  byName,
		loaded:  make(map[string]*Linear),
	}, nil
}

func (r *Registry) Encoder() *Encoder { return r.encoder }

// Specs lists the catalogue in configuration order.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, len(r.specs))
	copy(out, r.specs)
	return out
}

func (r *Registry) Spec(name string) (Spec, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Loaded reports whether the named classifier is already in memory.
func (r *Registry) Loaded(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaded[name]
	return ok
}

// Get returns the named classifier, loading and validating it on first use.
func (r *Registry) Get(name string) (*Linear, error) {
	spec, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}

	r.mu.RLock()
	l, ok := r.loaded[name]
	r.mu.RUnlock()
	if ok {
		return l, nil
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		r.mu.RLock()
		l, ok := r.loaded[name]
		r.mu.RUnlock()
		if ok {
			return l, nil
		}

		l, err := r.load(spec)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.loaded[name] = l
		r.mu.Unlock()
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Linear), nil
}

// Preload loads every classifier, stopping at the first failure.
func (r *Registry) Preload() error {
	for _, s := range r.specs {
		if _, err := r.Get(s.Name); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) load(spec Spec) (*Linear, error) {
	l, err := LoadClassifier(spec.Path)
	if err != nil {
		return nil, err
	}

	if l.Dim() != r.encoder.Dim() {
		return nil, fmt.Errorf("%w: model %q expects %d features, encoder produces %d",
			ErrShapeMismatch, spec.Name, l.Dim(), r.encoder.Dim())
	}
	for _, c := range l.classes {
		if !domain.Sentiment(c).Valid() {
			return nil, fmt.Errorf("%w: model %q class %d", ErrUnknownLabel, spec.Name, c)
		}
	}

	slog.Info("model loaded", "model", spec.Name, "type", l.Kind(), "classes", len(l.classes), "features", l.Dim())
	return l, nil
}

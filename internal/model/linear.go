package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

type Kind string

const (
	KindLinearSVC          Kind = "linear_svc"
	KindLogisticRegression Kind = "logistic_regression"
	KindSGD                Kind = "sgd"
)

var ErrNoProbabilities = errors.New("model: classifier does not estimate probabilities")

type linearArtifact struct {
	Type       Kind        `json:"type"`
	Classes    []int       `json:"classes"`
	Coef       [][]float64 `json:"coef"`
	Intercept  []float64   `json:"intercept"`
	MultiClass string      `json:"multi_class"`
	Loss       string      `json:"loss"`
}

// Linear is a fitted linear classifier: one weight row per class (a single
// row for two classes) plus intercepts. Immutable after load.
type Linear struct {
	kind       Kind
	classes    []int
	coef       [][]float64
	intercept  []float64
	multiClass string
	loss       string
}

// LoadClassifier reads a linear model artifact from path.
func LoadClassifier(path string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: read classifier: %w", err)
	}

	var a linearArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("model: decode classifier %s: %w", path, err)
	}

	l, err := newLinear(a)
	if err != nil {
		return nil, fmt.Errorf("model: classifier %s: %w", path, err)
	}
	return l, nil
}

func newLinear(a linearArtifact) (*Linear, error) {
	switch a.Type {
	case KindLinearSVC, KindLogisticRegression, KindSGD:
	default:
		return nil, fmt.Errorf("unknown classifier type %q", a.Type)
	}

	if len(a.Classes) < 2 {
		return nil, fmt.Errorf("need at least two classes, got %d", len(a.Classes))
	}
	seen := make(map[int]bool, len(a.Classes))
	for _, c := range a.Classes {
		if seen[c] {
			return nil, fmt.Errorf("class %d listed twice", c)
		}
		seen[c] = true
	}

	rows := len(a.Coef)
	binary := len(a.Classes) == 2 && rows == 1
	if !binary && rows != len(a.Classes) {
		return nil, fmt.Errorf("%w: %d coefficient rows for %d classes", ErrShapeMismatch, rows, len(a.Classes))
	}
	if len(a.Intercept) != rows {
		return nil, fmt.Errorf("%w: %d intercepts for %d coefficient rows", ErrShapeMismatch, len(a.Intercept), rows)
	}

	width := len(a.Coef[0])
	if width == 0 {
		return nil, fmt.Errorf("%w: empty coefficient row", ErrShapeMismatch)
	}
	for i, row := range a.Coef {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d weights, want %d", ErrShapeMismatch, i, len(row), width)
		}
	}

	multiClass := a.MultiClass
	if a.Type == KindLogisticRegression && multiClass == "" {
		multiClass = "multinomial"
	}

	return &Linear{
		kind:       a.Type,
		classes:    a.Classes,
		coef:       a.Coef,
		intercept:  a.Intercept,
		multiClass: multiClass,
		loss:       a.Loss,
	}, nil
}

func (l *Linear) Kind() Kind { return l.kind }

// Classes returns the labels the classifier can emit.
func (l *Linear) Classes() []int {
	out := make([]int, len(l.classes))
	copy(out, l.classes)
	return out
}

// Dim is the feature dimensionality the classifier was fitted on.
func (l *Linear) Dim() int { return len(l.coef[0]) }

// HasProbabilities reports whether Probabilities is supported.
func (l *Linear) HasProbabilities() bool {
	return l.kind == KindLogisticRegression || (l.kind == KindSGD && l.loss == "log_loss")
}

// Decision returns the raw score of every coefficient row.
func (l *Linear) Decision(v Vector) ([]float64, error) {
	if v.Dim != l.Dim() {
		return nil, fmt.Errorf("%w: vector has %d features, classifier expects %d", ErrShapeMismatch, v.Dim, l.Dim())
	}
	scores := make([]float64, len(l.coef))
	for i, row := range l.coef {
		scores[i] = v.dot(row) + l.intercept[i]
	}
	return scores, nil
}

// Predict returns the label with the highest decision score. Ties go to the
// class listed first.
func (l *Linear) Predict(v Vector) (int, error) {
	scores, err := l.Decision(v)
	if err != nil {
		return 0, err
	}
	if len(scores) == 1 {
		if scores[0] > 0 {
			return l.classes[1], nil
		}
		return l.classes[0], nil
	}
	return l.classes[argmax(scores)], nil
}

// PredictBatch predicts every row of a feature matrix.
func (l *Linear) PredictBatch(m []Vector) ([]int, error) {
	out := make([]int, len(m))
	for i, v := range m {
		label, err := l.Predict(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = label
	}
	return out, nil
}

// Probabilities returns one probability per class, in Classes order.
func (l *Linear) Probabilities(v Vector) ([]float64, error) {
	if !l.HasProbabilities() {
		return nil, ErrNoProbabilities
	}
	scores, err := l.Decision(v)
	if err != nil {
		return nil, err
	}

	if len(scores) == 1 {
		p := sigmoid(scores[0])
		return []float64{1 - p, p}, nil
	}
	if l.kind == KindLogisticRegression && l.multiClass == "multinomial" {
		return softmax(scores), nil
	}

	// One-vs-rest: normalise the independent sigmoids.
	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = sigmoid(s)
		sum += probs[i]
	}
	for i := range probs {
		if sum == 0 {
			probs[i] = 1 / float64(len(probs))
			continue
		}
		probs[i] /= sum
	}
	return probs, nil
}

func argmax(xs []float64) int {
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func softmax(xs []float64) []float64 {
	max := xs[argmax(xs)]
	out := make([]float64, len(xs))
	var sum float64
	for i, x := range xs {
		out[i] = math.Exp(x - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

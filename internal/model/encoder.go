package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrEmptyVocabulary = errors.New("model: empty vocabulary")
	ErrShapeMismatch   = errors.New("model: feature shape mismatch")
)

type encoderArtifact struct {
	Type         string         `json:"type"`
	Vocabulary   map[string]int `json:"vocabulary"`
	IDF          []float64      `json:"idf"`
	Lowercase    *bool          `json:"lowercase"`
	StripAccents string         `json:"strip_accents"`
	NgramRange   [2]int         `json:"ngram_range"`
	StopWords    []string       `json:"stop_words"`
	Binary       bool           `json:"binary"`
	SublinearTF  bool           `json:"sublinear_tf"`
	Norm         string         `json:"norm"`
}

// Encoder maps text to fixed-length feature vectors using a vocabulary
// fitted offline. It is immutable and safe for concurrent use.
type Encoder struct {
	vocab        map[string]int
	idf          []float64
	lowercase    bool
	stripAccents string
	minN, maxN   int
	stopWords    map[string]struct{}
	binary       bool
	sublinear    bool
	norm         string
}

// LoadEncoder reads a vectorizer artifact from path.
func LoadEncoder(path string) (*Encoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: read encoder: %w", err)
	}

	var a encoderArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("model: decode encoder %s: %w", path, err)
	}

	enc, err := newEncoder(a)
	if err != nil {
		return nil, fmt.Errorf("model: encoder %s: %w", path, err)
	}
	return enc, nil
}

func newEncoder(a encoderArtifact) (*Encoder, error) {
	if len(a.Vocabulary) == 0 {
		return nil, ErrEmptyVocabulary
	}

	// Indices must cover 0..n-1 exactly once.
	seen := make([]bool, len(a.Vocabulary))
	for term, idx := range a.Vocabulary {
		if idx < 0 || idx >= len(seen) {
			return nil, fmt.Errorf("term %q has index %d outside [0,%d)", term, idx, len(seen))
		}
		if seen[idx] {
			return nil, fmt.Errorf("index %d assigned twice", idx)
		}
		seen[idx] = true
	}

	switch a.Type {
	case "tfidf":
		if len(a.IDF) != len(a.Vocabulary) {
			return nil, fmt.Errorf("%w: %d idf weights for %d terms", ErrShapeMismatch, len(a.IDF), len(a.Vocabulary))
		}
	case "count":
		if len(a.IDF) != 0 {
			return nil, errors.New("count encoder must not carry idf weights")
		}
	default:
		return nil, fmt.Errorf("unknown encoder type %q", a.Type)
	}

	switch a.Norm {
	case "", "none", "l1", "l2":
	default:
		return nil, fmt.Errorf("unknown norm %q", a.Norm)
	}

	switch a.StripAccents {
	case "", "unicode", "ascii":
	default:
		return nil, fmt.Errorf("unknown strip_accents %q", a.StripAccents)
	}

	minN, maxN := a.NgramRange[0], a.NgramRange[1]
	if minN == 0 && maxN == 0 {
		minN, maxN = 1, 1
	}
	if minN < 1 || maxN < minN {
		return nil, fmt.Errorf("invalid ngram_range [%d,%d]", minN, maxN)
	}

	lowercase := true
	if a.Lowercase != nil {
		lowercase = *a.Lowercase
	}

	stop := make(map[string]struct{}, len(a.StopWords))
	for _, w := range a.StopWords {
		stop[w] = struct{}{}
	}

	return &Encoder{
		vocab:        a.Vocabulary,
		idf:          a.IDF,
		lowercase:    lowercase,
		stripAccents: a.StripAccents,
		minN:         minN,
		maxN:         maxN,
		stopWords:    stop,
		binary:       a.Binary,
		sublinear:    a.SublinearTF,
		norm:         a.Norm,
	}, nil
}

// Dim is the length of every vector the encoder produces.
func (e *Encoder) Dim() int {
	return len(e.vocab)
}

// Transform encodes a single text. Terms outside the vocabulary are ignored,
// so text with no known terms yields an all-zero vector.
func (e *Encoder) Transform(text string) Vector {
	counts := make(map[int]float64)
	for _, term := range e.analyze(text) {
		if idx, ok := e.vocab[term]; ok {
			counts[idx]++
		}
	}

	v := Vector{
		Dim:     e.Dim(),
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		v.Indices = append(v.Indices, idx)
	}
	sort.Ints(v.Indices)

	for _, idx := range v.Indices {
		w := counts[idx]
		switch {
		case e.binary:
			w = 1
		case e.sublinear:
			w = 1 + math.Log(w)
		}
		if e.idf != nil {
			w *= e.idf[idx]
		}
		v.Values = append(v.Values, w)
	}

	e.normalize(v.Values)
	return v
}

// TransformBatch encodes each text in order.
func (e *Encoder) TransformBatch(texts []string) []Vector {
	out := make([]Vector, len(texts))
	for i, t := range texts {
		out[i] = e.Transform(t)
	}
	return out
}

func (e *Encoder) normalize(values []float64) {
	var n float64
	switch e.norm {
	case "l2":
		for _, x := range values {
			n += x * x
		}
		n = math.Sqrt(n)
	case "l1":
		for _, x := range values {
			n += math.Abs(x)
		}
	default:
		return
	}
	if n == 0 {
		return
	}
	for i := range values {
		values[i] /= n
	}
}

func (e *Encoder) analyze(text string) []string {
	if e.lowercase {
		text = strings.ToLower(text)
	}
	text = e.strip(text)

	tokens := tokenize(text)
	if len(e.stopWords) > 0 {
		kept := tokens[:0]
		for _, t := range tokens {
			if _, stop := e.stopWords[t]; !stop {
				kept = append(kept, t)
			}
		}
		tokens = kept
	}
	return ngrams(tokens, e.minN, e.maxN)
}

func (e *Encoder) strip(text string) string {
	var t transform.Transformer
	switch e.stripAccents {
	case "unicode":
		t = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	case "ascii":
		t = transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
			return r > unicode.MaxASCII
		})))
	default:
		return text
	}
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// tokenize splits on anything that is not a word character and keeps tokens
// of at least two runes.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func ngrams(tokens []string, minN, maxN int) []string {
	if maxN == 1 {
		return tokens
	}

	var out []string
	if minN == 1 {
		out = append(out, tokens...)
		minN = 2
	}
	for n := minN; n <= maxN && n <= len(tokens); n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

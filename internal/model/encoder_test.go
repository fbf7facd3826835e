package model

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEncoderPath = "testdata/vectorizer.json"
	sampleTweet     = "CHECK OUT THESE WEATHER STORIES ... Do Not believe the Global warming climate change stories sold by UN, Vatican & Obama"
)

func loadTestEncoder(t *testing.T) *Encoder {
	t.Helper()
	enc, err := LoadEncoder(testEncoderPath)
	require.NoError(t, err)
	return enc
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEncoder(t *testing.T) {
	enc := loadTestEncoder(t)
	assert.Equal(t, 24, enc.Dim())
}

func TestLoadEncoderErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"corrupt json", `{"type":"tfidf","vocabulary":`},
		{"empty vocabulary", `{"type":"count","vocabulary":{}}`},
		{"idf length mismatch", `{"type":"tfidf","vocabulary":{"a":0,"b":1},"idf":[1.0]}`},
		{"index out of range", `{"type":"count","vocabulary":{"aa":0,"bb":5}}`},
		{"duplicate index", `{"type":"count","vocabulary":{"aa":0,"bb":0}}`},
		{"unknown type", `{"type":"hashing","vocabulary":{"aa":0}}`},
		{"unknown norm", `{"type":"count","vocabulary":{"aa":0},"norm":"max"}`},
		{"bad ngram range", `{"type":"count","vocabulary":{"aa":0},"ngram_range":[2,1]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := LoadEncoder(writeFile(t, "enc.json", tt.content))
			require.Error(t, err)
			assert.Nil(t, enc)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		enc, err := LoadEncoder(filepath.Join(t.TempDir(), "nope.json"))
		require.ErrorIs(t, err, os.ErrNotExist)
		assert.Nil(t, enc)
	})
}

func TestTransformDeterministic(t *testing.T) {
	enc := loadTestEncoder(t)

	first := enc.Transform(sampleTweet)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, enc.Transform(sampleTweet))
	}
}

func TestTransformWeights(t *testing.T) {
	enc := loadTestEncoder(t)

	v := enc.Transform("Climate CHANGE!")
	require.Equal(t, []int{1, 3}, v.Indices)
	assert.InDelta(t, 1/math.Sqrt2, v.Values[0], 1e-9)
	assert.InDelta(t, 1/math.Sqrt2, v.Values[1], 1e-9)

	dense := v.Dense()
	require.Len(t, dense, enc.Dim())
	assert.InDelta(t, 1/math.Sqrt2, dense[3], 1e-9)
	assert.Zero(t, dense[0])
}

func TestTransformSampleTweet(t *testing.T) {
	enc := loadTestEncoder(t)

	v := enc.Transform(sampleTweet)
	assert.Equal(t, 16, v.NNZ())

	var norm float64
	for _, x := range v.Values {
		norm += x * x
	}
	assert.InDelta(t, 1.0, norm, 1e-9)

	// "stories" appears twice and has the largest weight.
	stories := enc.vocab["stories"]
	assert.InDelta(t, 0.5695529982, v.Dense()[stories], 1e-6)
}

func TestTransformUnknownText(t *testing.T) {
	enc := loadTestEncoder(t)

	for _, text := range []string{"", "   ", "zzz qqq", "a b c"} {
		v := enc.Transform(text)
		assert.Equal(t, enc.Dim(), v.Dim)
		assert.Zero(t, v.NNZ(), "text %q", text)
	}
}

func TestTransformBatch(t *testing.T) {
	enc := loadTestEncoder(t)

	texts := []string{sampleTweet, "climate", ""}
	m := enc.TransformBatch(texts)
	require.Len(t, m, 3)
	for i, text := range texts {
		assert.Equal(t, enc.Transform(text), m[i])
	}
}

func TestAnalyzer(t *testing.T) {
	enc, err := newEncoder(encoderArtifact{
		Type:         "count",
		Vocabulary:   map[string]int{"cafe": 0, "cafe hot": 1, "hot": 2},
		StripAccents: "unicode",
		NgramRange:   [2]int{1, 2},
		StopWords:    []string{"the"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"cafe", "hot", "cafe hot"}, enc.analyze("The Café, HOT"))

	v := enc.Transform("café hot café")
	assert.Equal(t, []int{0, 1, 2}, v.Indices)
	assert.Equal(t, []float64{2, 1, 1}, v.Values)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"hello world", []string{"hello", "world"}},
		{"a bb c", []string{"bb"}},
		{"#climate @UN_news http://t.co/x1", []string{"climate", "UN_news", "http", "co", "x1"}},
		{"...", []string{}},
		{"cafe\u0301 au lait", []string{"cafe", "au", "lait"}},
	}
	for _, tt := range tests {
		got := tokenize(tt.in)
		if len(tt.want) == 0 {
			assert.Empty(t, got)
			continue
		}
		assert.Equal(t, tt.want, got)
	}
}

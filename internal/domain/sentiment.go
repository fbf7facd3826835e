package domain

import (
	"fmt"
	"strings"
)

// Sentiment is the class label emitted by the tweet classifiers.
type Sentiment int

const (
	SentimentAnti    Sentiment = -1
	SentimentNeutral Sentiment = 0
	SentimentPro     Sentiment = 1
	SentimentNews    Sentiment = 2
)

type sentimentInfo struct {
	name        string
	description string
}

var sentiments = map[Sentiment]sentimentInfo{
	SentimentAnti:    {"Anti", "the tweet does not believe in man-made climate change"},
	SentimentNeutral: {"Neutral", "the tweet neither supports nor refutes man-made climate change"},
	SentimentPro:     {"Pro", "the tweet supports the belief of man-made climate change"},
	SentimentNews:    {"News", "the tweet links to factual news about climate change"},
}

// Sentiments returns every known label in ascending order.
func Sentiments() []Sentiment {
	return []Sentiment{SentimentAnti, SentimentNeutral, SentimentPro, SentimentNews}
}

// ParseSentiment maps a display name (as returned by String) back to its label.
func ParseSentiment(name string) (Sentiment, bool) {
	for s, info := range sentiments {
		if info.name == name {
			return s, true
		}
	}
	return 0, false
}

func (s Sentiment) Valid() bool {
	_, ok := sentiments[s]
	return ok
}

func (s Sentiment) String() string {
	if info, ok := sentiments[s]; ok {
		return info.name
	}
	return fmt.Sprintf("Sentiment(%d)", int(s))
}

func (s Sentiment) Description() string {
	return sentiments[s].description
}

// Slug is the lower-case name, used as a CSS class.
func (s Sentiment) Slug() string {
	if !s.Valid() {
		return "unknown"
	}
	return strings.ToLower(s.String())
}

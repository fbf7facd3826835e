// Package dataset reads the labelled tweet corpus the models were fitted on.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tweetclassifier/internal/domain"
)

var requiredColumns = []string{"sentiment", "message", "tweetid"}

// Load reads a CSV file with at least the sentiment, message and tweetid
// columns, in any order.
func Load(path string) ([]domain.Tweet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()

	tweets, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}
	return tweets, nil
}

func Read(r io.Reader) ([]domain.Tweet, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header")
	}
	if err != nil {
		return nil, err
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var tweets []domain.Tweet
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		line, _ := cr.FieldPos(0)
		t, err := parseRecord(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		tweets = append(tweets, t)
	}
	return tweets, nil
}

func parseRecord(rec []string, cols map[string]int) (domain.Tweet, error) {
	field := func(name string) (string, error) {
		i := cols[name]
		if i >= len(rec) {
			return "", fmt.Errorf("missing %s", name)
		}
		return rec[i], nil
	}

	raw, err := field("sentiment")
	if err != nil {
		return domain.Tweet{}, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return domain.Tweet{}, fmt.Errorf("sentiment %q: %w", raw, err)
	}
	sentiment := domain.Sentiment(n)
	if !sentiment.Valid() {
		return domain.Tweet{}, fmt.Errorf("unknown sentiment %d", n)
	}

	msg, err := field("message")
	if err != nil {
		return domain.Tweet{}, err
	}
	id, err := field("tweetid")
	if err != nil {
		return domain.Tweet{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Tweet{}, errors.New("empty tweetid")
	}

	return domain.Tweet{
		ID:        id,
		Content:   msg,
		Sentiment: sentiment,
		Source:    domain.SourceDataset,
	}, nil
}

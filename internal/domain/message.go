package domain

import "time"

// Tweet is either a row of the labelled training set or an item scraped
// from a live feed. Scraped tweets carry no Sentiment until classified.
type Tweet struct {
	ID        string
	Author    string
	Username  string
	Content   string
	Sentiment Sentiment
	Source    Source
	CreatedAt time.Time
}

type Source string

const (
	SourceDataset Source = "dataset"
	SourceWeb     Source = "web"
	SourceAPI     Source = "api"
	SourceFeed    Source = "feed"
)

// Prediction records one classification made by the application.
type Prediction struct {
	ID         string
	Model      string
	Text       string
	Label      Sentiment
	Confidence float64
	Source     Source
	Author     string
	CreatedAt  time.Time
}

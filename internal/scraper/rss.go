package scraper

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"tweetclassifier/internal/domain"
)

// RSS reads tweets from RSS or Atom feeds, such as those a Nitter instance
// publishes at https://<instance>/<account>/rss.
type RSS struct {
	client *http.Client
	parser *gofeed.Parser
	now    func() time.Time
}

func NewRSS() *RSS {
	return &RSS{
		client: &http.Client{Timeout: 15 * time.Second},
		parser: gofeed.NewParser(),
		now:    time.Now,
	}
}

func (s *RSS) Scrape(ctx context.Context, feedURL string) ([]domain.Tweet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, */*")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	tweets := make([]domain.Tweet, 0, len(feed.Items))
	for _, item := range feed.Items {
		content := strings.TrimSpace(item.Title)
		if content == "" {
			content = strings.TrimSpace(item.Description)
		}
		if content == "" {
			continue
		}

		createdAt := s.now()
		if item.PublishedParsed != nil {
			createdAt = *item.PublishedParsed
		}

		author := feed.Title
		if item.Author != nil && item.Author.Name != "" {
			author = item.Author.Name
		}

		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}

		tweets = append(tweets, domain.Tweet{
			ID:        generateID(guid + content),
			Author:    author,
			Username:  username(item.Link),
			Content:   content,
			Source:    domain.SourceFeed,
			CreatedAt: createdAt,
		})
	}

	return tweets, nil
}

// username takes the first path segment of a status link
// (https://host/<user>/status/<id>).
func username(link string) string {
	link = strings.TrimPrefix(strings.TrimPrefix(link, "https://"), "http://")
	parts := strings.Split(link, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func generateID(guid string) string {
	hash := md5.Sum([]byte(guid))
	return fmt.Sprintf("%x", hash)[:12]
}

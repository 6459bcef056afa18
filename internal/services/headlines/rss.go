package headlines

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	xhttp "MarketSignal/pkg/http"
)

// RSSSource reads headlines from an RSS or Atom feed.
type RSSSource struct {
	url    string
	client *xhttp.Client
	opts   Options
	now    func() time.Time
}

// NewRSSSource creates a feed reader. Only MinLength and Limit of opts apply.
func NewRSSSource(feedURL string, client *xhttp.Client, opts Options) *RSSSource {
	return &RSSSource{url: feedURL, client: client, opts: opts.withDefaults(), now: time.Now}
}

// Fetch downloads and parses the feed. Items keep feed order.
func (s *RSSSource) Fetch(ctx context.Context) ([]models.Headline, error) {
	body, err := s.client.GetBytes(ctx, s.url, map[string]string{"Accept": "application/rss+xml, application/atom+xml, application/xml"})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	return s.Parse(body)
}

// Parse converts feed bytes into headlines.
func (s *RSSSource) Parse(body []byte) ([]models.Headline, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	source := feed.Title
	if source == "" {
		source = hostOf(s.url)
	}
	fetched := s.now().UTC()
	out := make([]models.Headline, 0, s.opts.Limit)
	for _, item := range feed.Items {
		title := normalizeSpace(item.Title)
		if len([]rune(title)) <= s.opts.MinLength {
			continue
		}
		out = append(out, models.Headline{Title: title, Source: source, Link: item.Link, FetchedAt: fetched})
		if len(out) == s.opts.Limit {
			break
		}
	}
	return out, nil
}

var _ domrepo.HeadlineSource = (*RSSSource)(nil)

package headlines

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	xhttp "MarketSignal/pkg/http"
)

// Options controls which scraped texts count as headlines.
type Options struct {
	Selector  string
	MinLength int // trimmed text must be strictly longer
	Limit     int
}

func (o Options) withDefaults() Options {
	if o.Selector == "" {
		o.Selector = "h3"
	}
	if o.MinLength < 0 {
		o.MinLength = 0
	}
	if o.Limit <= 0 {
		o.Limit = 5
	}
	return o
}

// HTMLSource scrapes a news page and keeps the text of elements matching Selector.
type HTMLSource struct {
	url    string
	client *xhttp.Client
	opts   Options
	now    func() time.Time
}

// NewHTMLSource creates a scraper for pageURL.
func NewHTMLSource(pageURL string, client *xhttp.Client, opts Options) *HTMLSource {
	return &HTMLSource{url: pageURL, client: client, opts: opts.withDefaults(), now: time.Now}
}

// Fetch downloads the page and extracts headlines in document order.
func (s *HTMLSource) Fetch(ctx context.Context) ([]models.Headline, error) {
	body, err := s.client.GetBytes(ctx, s.url, map[string]string{"Accept": "text/html"})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	return s.Parse(body)
}

// Parse extracts headlines from an HTML document.
func (s *HTMLSource) Parse(body []byte) ([]models.Headline, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	source := hostOf(s.url)
	fetched := s.now().UTC()
	out := make([]models.Headline, 0, s.opts.Limit)
	doc.Find(s.opts.Selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := normalizeSpace(sel.Text())
		if len([]rune(title)) <= s.opts.MinLength {
			return true
		}
		h := models.Headline{Title: title, Source: source, FetchedAt: fetched}
		if href, ok := sel.Find("a[href]").First().Attr("href"); ok {
			h.Link = resolve(s.url, href)
		} else if href, ok := sel.Closest("a[href]").Attr("href"); ok {
			h.Link = resolve(s.url, href)
		}
		out = append(out, h)
		return len(out) < s.opts.Limit
	})
	return out, nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.TrimPrefix(u.Host, "www.")
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

var _ domrepo.HeadlineSource = (*HTMLSource)(nil)

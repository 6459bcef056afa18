package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"MarketSignal/internal/domain/models"
	domsvc "MarketSignal/internal/domain/service"
	"MarketSignal/pkg/cache"
)

// ErrEmptyText is returned for blank input; the model would score it arbitrarily.
var ErrEmptyText = errors.New("empty text")

// maxTextRunes bounds what is sent to the model, matching its input window.
const maxTextRunes = 512

// HTTPClassifier calls a transformer sentiment model served over HTTP.
type HTTPClassifier struct {
	base     *HTTPServiceBase
	attempts int
}

// NewHTTPClassifier creates a classifier for the model service at baseURL.
func NewHTTPClassifier(base *HTTPServiceBase, attempts int) *HTTPClassifier {
	return &HTTPClassifier{base: base, attempts: attempts}
}

type classifyReq struct {
	Text string `json:"text"`
}

type classifyResp struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify returns the model's label and confidence for text.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (models.SentimentObservation, error) {
	obs := models.SentimentObservation{Text: text}
	text = strings.TrimSpace(text)
	if text == "" {
		return obs, ErrEmptyText
	}

	var resp classifyResp
	if err := c.base.PostJSONWithRetry(ctx, "/sentiment/classify", classifyReq{Text: truncate(text, maxTextRunes)}, &resp, c.attempts); err != nil {
		return obs, fmt.Errorf("classify: %w", err)
	}
	obs.Label = models.Label(strings.ToUpper(strings.TrimSpace(resp.Label)))
	obs.Confidence = resp.Score
	return obs, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// CachedClassifier memoizes verdicts by text. Headlines repeat across
// refreshes, so most calls after the first hour are cache hits.
type CachedClassifier struct {
	next  domsvc.Classifier
	cache cache.Service
	ttl   time.Duration
}

// NewCachedClassifier wraps next with a cache.
func NewCachedClassifier(next domsvc.Classifier, c cache.Service, ttl time.Duration) *CachedClassifier {
	return &CachedClassifier{next: next, cache: c, ttl: ttl}
}

func (c *CachedClassifier) Classify(ctx context.Context, text string) (models.SentimentObservation, error) {
	key := cache.GenerateKey("sentiment", cache.HashKey(text))
	obs, _, err := cache.GetOrLoad(ctx, c.cache, key, c.ttl, func(ctx context.Context) (models.SentimentObservation, error) {
		return c.next.Classify(ctx, text)
	})
	return obs, err
}

var (
	_ domsvc.Classifier = (*HTTPClassifier)(nil)
	_ domsvc.Classifier = (*CachedClassifier)(nil)
)

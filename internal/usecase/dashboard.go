package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	domsvc "MarketSignal/internal/domain/service"
	"MarketSignal/internal/services/sentiment"
	"MarketSignal/internal/services/signal"
	"MarketSignal/pkg/cache"
	applogger "MarketSignal/pkg/logger"
	xutil "MarketSignal/pkg/util"
)

// NoHeadlinesWarning is shown when no headline could be fetched or scored.
const NoHeadlinesWarning = "No news headlines found or failed to analyze sentiment."

// NoKeywordMessage is returned by Social when no asset rule matches.
const NoKeywordMessage = "No tradeable keyword found. Mention oil, energy, china, tariff, inflation or gold."

// otherTarget labels metrics for targets missing from the price table.
const otherTarget = "other"

// DashboardConfig tunes the dashboard use case.
type DashboardConfig struct {
	Thresholds   models.Thresholds
	DefaultIndex string
	HeadlineKey  string // cache key for the current headline batch
	HeadlineTTL  time.Duration
	Workers      int
	Timeout      time.Duration
}

// Dashboard wires headline fetch, classification, the price table and the
// signal engine into the two dashboard panels.
type Dashboard struct {
	source     domrepo.HeadlineSource
	classifier domsvc.Classifier
	prices     domrepo.PriceTable
	journal    domrepo.SignalJournal
	history    domrepo.SignalHistory
	metrics    domrepo.Metrics
	cache      cache.Service
	log        *applogger.Logger
	cfg        DashboardConfig
	now        func() time.Time
	newID      func() string

	latest atomic.Pointer[models.DailySignal] // last default-target signal
}

// NewDashboard creates the use case. history may be nil when no queryable journal is configured.
func NewDashboard(
	source domrepo.HeadlineSource,
	classifier domsvc.Classifier,
	prices domrepo.PriceTable,
	journal domrepo.SignalJournal,
	history domrepo.SignalHistory,
	metrics domrepo.Metrics,
	c cache.Service,
	l *applogger.Logger,
	cfg DashboardConfig,
) *Dashboard {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.HeadlineKey == "" {
		cfg.HeadlineKey = "headlines:current"
	}
	if cfg.DefaultIndex == "" {
		cfg.DefaultIndex = "S&P 500"
	}
	return &Dashboard{
		source:     source,
		classifier: classifier,
		prices:     prices,
		journal:    journal,
		history:    history,
		metrics:    metrics,
		cache:      c,
		log:        l,
		cfg:        cfg,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
}

// Thresholds returns the active recommendation bounds.
func (d *Dashboard) Thresholds() models.Thresholds { return d.cfg.Thresholds }

// DefaultIndex returns the index used when a request names no target.
func (d *Dashboard) DefaultIndex() string { return d.cfg.DefaultIndex }

// Indices lists the selectable indices and their daily move.
func (d *Dashboard) Indices() []models.IndexQuote { return d.prices.Indices() }

// ResolveTarget picks the evaluated target: a non-blank stock symbol, upper-cased,
// wins over the selected index; with neither, the default index is used.
func (d *Dashboard) ResolveTarget(symbol, index string) string {
	if s := strings.ToUpper(strings.TrimSpace(symbol)); s != "" {
		return s
	}
	if i := strings.TrimSpace(index); i != "" {
		return i
	}
	return d.cfg.DefaultIndex
}

// PriceChange returns the daily move for target, falling back to the table default.
func (d *Dashboard) PriceChange(target string) float64 {
	if v, ok := d.prices.Lookup(target); ok {
		return v
	}
	return d.prices.Default()
}

// Headlines returns the current headlines with their sentiment. Fetch and
// classification failures are logged and shrink the result; they never fail the call.
func (d *Dashboard) Headlines(ctx context.Context) []models.ScoredHeadline {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	start := d.now()
	items, hit, err := cache.GetOrLoad(ctx, d.cache, d.cfg.HeadlineKey, d.cfg.HeadlineTTL, d.source.Fetch)
	if err != nil {
		d.metrics.RecordError("headlines_fetch")
		d.log.Warn("headline fetch failed", applogger.Error(err))
		return []models.ScoredHeadline{}
	}
	if !hit {
		d.metrics.RecordLatency("headlines_fetch", time.Since(start).Seconds())
		d.log.Info("headlines refreshed", applogger.Int("count", len(items)))
	}

	texts := make([]string, len(items))
	for i, h := range items {
		texts[i] = h.Title
	}

	start = d.now()
	outcomes := sentiment.ClassifyAll(ctx, d.classifier, texts, d.cfg.Workers)
	d.metrics.RecordLatency("classify_batch", time.Since(start).Seconds())

	scored := make([]models.ScoredHeadline, 0, len(items))
	for i, o := range outcomes {
		err := o.Err
		if err == nil {
			err = signal.Validate(o.Observation)
		}
		if err != nil {
			d.metrics.RecordError("classify")
			d.log.Warn("headline dropped",
				applogger.String("headline", items[i].Title),
				applogger.Error(err),
			)
			continue
		}
		o.Observation.Text = items[i].Title
		scored = append(scored, models.ScoredHeadline{Headline: items[i], Sentiment: o.Observation})
	}
	return scored
}

// DailySignal evaluates the recommendation for the resolved target and journals it.
func (d *Dashboard) DailySignal(ctx context.Context, symbol, index string) (*models.DailySignal, error) {
	out, err := d.evaluate(ctx, symbol, index)
	if err != nil {
		return nil, err
	}

	label := d.metricTarget(out.Target)
	d.metrics.RecordSignal(models.EventKindDaily, label, out.Signal)
	d.metrics.RecordSentiment(label, out.SentimentValue)
	d.record(ctx, &models.SignalEvent{
		Target:         out.Target,
		Kind:           models.EventKindDaily,
		Signal:         out.Signal,
		PriceChange:    out.PriceChange,
		SentimentValue: out.SentimentValue,
		Observations:   len(out.Headlines),
	})
	if out.Target == d.cfg.DefaultIndex {
		d.latest.Store(out)
	}
	return out, nil
}

// Latest returns the last default-target signal. Before any has been computed
// it evaluates one without journaling it.
func (d *Dashboard) Latest(ctx context.Context) (*models.DailySignal, error) {
	if s := d.latest.Load(); s != nil {
		return s, nil
	}
	return d.evaluate(ctx, "", "")
}

func (d *Dashboard) evaluate(ctx context.Context, symbol, index string) (*models.DailySignal, error) {
	target := d.ResolveTarget(symbol, index)
	price := d.PriceChange(target)
	headlines := d.Headlines(ctx)

	obs := make([]models.SentimentObservation, len(headlines))
	for i, h := range headlines {
		obs[i] = h.Sentiment
	}

	res, err := signal.Evaluate(models.SignalInput{PriceChangePercent: price, Observations: obs}, d.cfg.Thresholds)
	if err != nil {
		d.metrics.RecordError("evaluate")
		return nil, fmt.Errorf("evaluate %s: %w", target, err)
	}

	out := &models.DailySignal{
		Target:         target,
		PriceChange:    price,
		SentimentValue: res.SentimentValue,
		Signal:         res.Signal,
		Explanation:    signal.Explain(res.Signal),
		Headlines:      headlines,
		Thresholds:     d.cfg.Thresholds,
		GeneratedAt:    d.now().UTC(),
	}
	if len(headlines) == 0 {
		out.Warning = NoHeadlinesWarning
	}
	return out, nil
}

// metricTarget keeps metric label values to the configured price table.
func (d *Dashboard) metricTarget(target string) string {
	if _, ok := d.prices.Lookup(target); ok {
		return target
	}
	return otherTarget
}

// Social runs the keyword panel on free text.
func (d *Dashboard) Social(ctx context.Context, text string) (*models.SocialSignal, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, sentiment.ErrEmptyText
	}
	out := &models.SocialSignal{Text: text}
	rule, ok := signal.MatchAsset(text)
	if !ok {
		out.Message = NoKeywordMessage
		return out, nil
	}
	out.Matched = true
	out.Rule = &rule

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	obs, err := d.classifier.Classify(ctx, text)
	if err == nil {
		err = signal.Validate(obs)
	}
	if err != nil {
		d.metrics.RecordError("classify")
		return nil, fmt.Errorf("classify social text: %w", errors.Join(ErrClassifierUnavailable, err))
	}
	obs.Text = text
	out.Sentiment = &obs
	out.Signal = signal.AssetAction(rule, obs)
	out.Message = fmt.Sprintf("%s sentiment (%s) on %s: %s %s",
		obs.Label, xutil.Percent(obs.Confidence), strings.Join(rule.Keywords, "/"), out.Signal, rule.AssetLabel)

	value := obs.Confidence
	if obs.Label == models.LabelNegative {
		value = -value
	} else if obs.Label == models.LabelNeutral {
		value = 0
	}
	d.metrics.RecordSignal(models.EventKindSocial, rule.AssetLabel, out.Signal)
	d.record(ctx, &models.SignalEvent{
		Target:         rule.AssetLabel,
		Kind:           models.EventKindSocial,
		Signal:         out.Signal,
		SentimentValue: value,
		Observations:   1,
	})
	return out, nil
}

// History returns journaled recommendations for target, newest first.
func (d *Dashboard) History(ctx context.Context, target string, since time.Time, limit int) ([]models.SignalEvent, error) {
	if d.history == nil {
		return nil, ErrHistoryUnavailable
	}
	events, err := d.history.History(ctx, target, since, limit)
	if err != nil {
		d.metrics.RecordError("history")
		return nil, fmt.Errorf("history %s: %w", target, err)
	}
	return events, nil
}

// InvalidateHeadlines drops the cached headline batch so the next read refetches.
func (d *Dashboard) InvalidateHeadlines(ctx context.Context) error {
	return d.cache.Delete(ctx, d.cfg.HeadlineKey)
}

// record journals ev. Journal failures are logged; the recommendation was already served.
func (d *Dashboard) record(ctx context.Context, ev *models.SignalEvent) {
	ev.ID = d.newID()
	ev.CreatedAt = d.now().UTC()
	if err := d.journal.Record(ctx, ev); err != nil {
		d.metrics.RecordError("journal")
		d.log.Warn("journal record failed",
			applogger.String("target", ev.Target),
			applogger.String("kind", ev.Kind),
			applogger.Error(err),
		)
	}
}

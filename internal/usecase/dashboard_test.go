package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSignal/internal/domain/models"
	"MarketSignal/internal/repository"
	"MarketSignal/internal/services/sentiment"
	"MarketSignal/internal/services/signal"
	"MarketSignal/pkg/cache"
	applogger "MarketSignal/pkg/logger"
	"MarketSignal/pkg/metrics"
)

type stubSource struct {
	mu        sync.Mutex
	headlines []models.Headline
	err       error
	calls     int
}

func (s *stubSource) Fetch(context.Context) ([]models.Headline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.headlines, s.err
}

type stubClassifier struct {
	verdicts map[string]models.SentimentObservation
	err      error
}

func (c *stubClassifier) Classify(_ context.Context, text string) (models.SentimentObservation, error) {
	if c.err != nil {
		return models.SentimentObservation{}, c.err
	}
	v, ok := c.verdicts[text]
	if !ok {
		return models.SentimentObservation{}, errors.New("no verdict")
	}
	v.Text = text
	return v, nil
}

type memJournal struct {
	mu     sync.Mutex
	events []models.SignalEvent
	err    error
}

func (j *memJournal) Record(_ context.Context, ev *models.SignalEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.events = append(j.events, *ev)
	return nil
}

func (j *memJournal) Close() error { return nil }

func (j *memJournal) History(_ context.Context, target string, since time.Time, limit int) ([]models.SignalEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []models.SignalEvent
	for i := len(j.events) - 1; i >= 0 && len(out) < limit; i-- {
		if j.events[i].Target == target && !j.events[i].CreatedAt.Before(since) {
			out = append(out, j.events[i])
		}
	}
	return out, nil
}

func headline(title string) models.Headline { return models.Headline{Title: title, Source: "test"} }

func pos(c float64) models.SentimentObservation {
	return models.SentimentObservation{Label: models.LabelPositive, Confidence: c}
}

func neg(c float64) models.SentimentObservation {
	return models.SentimentObservation{Label: models.LabelNegative, Confidence: c}
}

type fixture struct {
	dash    *Dashboard
	source  *stubSource
	cls     *stubClassifier
	journal *memJournal
	mem     *cache.MemoryCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	src := &stubSource{headlines: []models.Headline{headline("h1"), headline("h2"), headline("h3")}}
	cls := &stubClassifier{verdicts: map[string]models.SentimentObservation{
		"h1": pos(0.9),
		"h2": pos(0.8),
		"h3": neg(0.4),
	}}
	journal := &memJournal{}
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })

	prices := repository.NewStaticPriceTable(
		[]string{"S&P 500", "Nasdaq", "Hang Seng"},
		map[string]float64{"S&P 500": 0.8, "Nasdaq": -0.5, "Hang Seng": -1.2},
		0.2,
	)
	dash := NewDashboard(src, cls, prices, journal, journal, metrics.Nop{}, mem, applogger.Nop(), DashboardConfig{
		Thresholds:  models.DefaultThresholds(),
		HeadlineTTL: time.Hour,
		Workers:     2,
	})
	ids := 0
	dash.newID = func() string { ids++; return "id-" + string(rune('0'+ids)) }
	dash.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	return &fixture{dash: dash, source: src, cls: cls, journal: journal, mem: mem}
}

func TestResolveTarget(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "AAPL", f.dash.ResolveTarget(" aapl ", "Nasdaq"))
	assert.Equal(t, "Nasdaq", f.dash.ResolveTarget("", "Nasdaq"))
	assert.Equal(t, "S&P 500", f.dash.ResolveTarget("  ", ""))
}

func TestDailySignalBuy(t *testing.T) {
	f := newFixture(t)

	got, err := f.dash.DailySignal(context.Background(), "", "S&P 500")
	require.NoError(t, err)

	assert.Equal(t, "S&P 500", got.Target)
	assert.Equal(t, 0.8, got.PriceChange)
	assert.InDelta(t, (0.9+0.8-0.4)/3, got.SentimentValue, 1e-9)
	assert.Equal(t, models.SignalBuy, got.Signal)
	assert.Equal(t, signal.Explain(models.SignalBuy), got.Explanation)
	assert.Empty(t, got.Warning)
	require.Len(t, got.Headlines, 3)
	assert.Equal(t, "h1", got.Headlines[0].Headline.Title)
	assert.Equal(t, "h3", got.Headlines[2].Sentiment.Text)

	require.Len(t, f.journal.events, 1)
	ev := f.journal.events[0]
	assert.Equal(t, "id-1", ev.ID)
	assert.Equal(t, models.EventKindDaily, ev.Kind)
	assert.Equal(t, 3, ev.Observations)
}

func TestDailySignalUnknownStockUsesDefaultMove(t *testing.T) {
	f := newFixture(t)
	got, err := f.dash.DailySignal(context.Background(), "tsla", "S&P 500")
	require.NoError(t, err)
	assert.Equal(t, "TSLA", got.Target)
	assert.Equal(t, 0.2, got.PriceChange)
	assert.Equal(t, models.SignalHold, got.Signal)
}

func TestDailySignalSourceFailureHolds(t *testing.T) {
	f := newFixture(t)
	f.source.err = errors.New("403")

	got, err := f.dash.DailySignal(context.Background(), "", "Hang Seng")
	require.NoError(t, err)
	assert.Equal(t, models.SignalHold, got.Signal)
	assert.Equal(t, 0.0, got.SentimentValue)
	assert.Equal(t, NoHeadlinesWarning, got.Warning)
	assert.Empty(t, got.Headlines)
}

type labelMetrics struct {
	metrics.Nop
	mu      sync.Mutex
	targets []string
}

func (m *labelMetrics) RecordSignal(_, target string, _ models.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets = append(m.targets, target)
}

func TestDailySignalMetricLabelsAreBounded(t *testing.T) {
	f := newFixture(t)
	m := &labelMetrics{}
	f.dash.metrics = m

	for _, target := range [][2]string{{"", "Nasdaq"}, {"tsla", ""}, {"", "Atlantis"}} {
		_, err := f.dash.DailySignal(context.Background(), target[0], target[1])
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"Nasdaq", "other", "other"}, m.targets)
	assert.Equal(t, "TSLA", f.journal.events[1].Target)

	// invalid UTF-8 must not reach a Prometheus label
	f.dash.metrics = metrics.New(prometheus.NewRegistry())
	assert.NotPanics(t, func() {
		_, err := f.dash.DailySignal(context.Background(), "", "\xff")
		assert.NoError(t, err)
	})
}

func TestLatestDoesNotJournal(t *testing.T) {
	f := newFixture(t)

	first, err := f.dash.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "S&P 500", first.Target)
	assert.Empty(t, f.journal.events)

	_, err = f.dash.DailySignal(context.Background(), "", "Nasdaq")
	require.NoError(t, err)
	want, err := f.dash.DailySignal(context.Background(), "", "S&P 500")
	require.NoError(t, err)

	got, err := f.dash.Latest(context.Background())
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Len(t, f.journal.events, 2)
}

func TestHeadlinesDropsFailedClassifications(t *testing.T) {
	f := newFixture(t)
	f.source.headlines = append(f.source.headlines, headline("unscored"), headline("weird"))
	f.cls.verdicts["weird"] = models.SentimentObservation{Label: "MIXED", Confidence: 0.5}

	got := f.dash.Headlines(context.Background())
	require.Len(t, got, 3)
	for i, want := range []string{"h1", "h2", "h3"} {
		assert.Equal(t, want, got[i].Headline.Title)
	}
}

func TestHeadlinesAreCached(t *testing.T) {
	f := newFixture(t)
	f.dash.Headlines(context.Background())
	f.dash.Headlines(context.Background())
	assert.Equal(t, 1, f.source.calls)

	require.NoError(t, f.dash.InvalidateHeadlines(context.Background()))
	f.dash.Headlines(context.Background())
	assert.Equal(t, 2, f.source.calls)
}

func TestJournalFailureDoesNotFailSignal(t *testing.T) {
	f := newFixture(t)
	f.journal.err = errors.New("kafka down")
	_, err := f.dash.DailySignal(context.Background(), "", "Nasdaq")
	assert.NoError(t, err)
}

func TestSocial(t *testing.T) {
	f := newFixture(t)
	f.cls.verdicts["Oil prices are rising"] = pos(0.95)
	f.cls.verdicts["Inflation is easing fast"] = pos(0.9)

	got, err := f.dash.Social(context.Background(), "Oil prices are rising")
	require.NoError(t, err)
	assert.True(t, got.Matched)
	assert.Equal(t, "USO", got.Rule.AssetLabel)
	assert.Equal(t, models.SignalBuy, got.Signal)
	assert.Contains(t, got.Message, "95.0%")

	got, err = f.dash.Social(context.Background(), "Inflation is easing fast")
	require.NoError(t, err)
	assert.Equal(t, "GLD", got.Rule.AssetLabel)
	assert.Equal(t, models.SignalSell, got.Signal)

	got, err = f.dash.Social(context.Background(), "Nothing to see here")
	require.NoError(t, err)
	assert.False(t, got.Matched)
	assert.Nil(t, got.Rule)
	assert.Equal(t, NoKeywordMessage, got.Message)

	require.Len(t, f.journal.events, 2)
	assert.Equal(t, models.EventKindSocial, f.journal.events[1].Kind)
	assert.Equal(t, 0.9, f.journal.events[1].SentimentValue)
}

func TestSocialBlankText(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := f.dash.Social(context.Background(), text)
		assert.ErrorIs(t, err, sentiment.ErrEmptyText)
	}
	assert.Empty(t, f.journal.events)
}

func TestSocialClassifierError(t *testing.T) {
	f := newFixture(t)
	f.cls.err = errors.New("model down")
	_, err := f.dash.Social(context.Background(), "tariff news")
	assert.ErrorIs(t, err, ErrClassifierUnavailable)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	_, _ = f.dash.DailySignal(context.Background(), "", "Nasdaq")
	_, _ = f.dash.DailySignal(context.Background(), "", "Nasdaq")

	got, err := f.dash.History(context.Background(), "Nasdaq", time.Time{}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "id-2", got[0].ID)

	f.dash.history = nil
	_, err = f.dash.History(context.Background(), "Nasdaq", time.Time{}, 1)
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
}

func TestJournalHandler(t *testing.T) {
	store := &memJournal{}
	h := NewJournalHandler("marketsignal.signals", store, metrics.Nop{})
	assert.Equal(t, "marketsignal.signals", h.Topic())

	b, _ := json.Marshal(models.SignalEvent{ID: "x", Target: "SPY", Kind: "social", Signal: models.SignalBuy, CreatedAt: time.Now()})
	require.NoError(t, h.Handle(context.Background(), b))
	require.Len(t, store.events, 1)
	assert.Equal(t, models.SignalBuy, store.events[0].Signal)

	assert.Error(t, h.Handle(context.Background(), []byte("{")))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"target":"SPY"}`)))

	store.err = errors.New("clickhouse down")
	assert.Error(t, h.Handle(context.Background(), b))
}

type captureBroadcaster struct {
	mu  sync.Mutex
	got []interface{}
}

func (b *captureBroadcaster) Broadcast(v interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, v)
}

func TestRefreshSchedulerRun(t *testing.T) {
	f := newFixture(t)
	out := &captureBroadcaster{}
	s := NewRefreshScheduler("@every 1h", f.dash, f.mem, out, applogger.Nop())

	f.dash.Headlines(context.Background())
	s.Run()

	assert.Equal(t, 2, f.source.calls, "refresh bypasses the cached batch")
	require.Len(t, out.got, 1)
	snap := out.got[0].(Snapshot)
	assert.Equal(t, SnapshotRefresh, snap.Type)
	assert.Equal(t, "S&P 500", snap.Data.(*models.DailySignal).Target)

	// held lock: another instance is refreshing
	ok, _ := f.mem.TryLock(context.Background(), "headlines:refresh-lock", time.Minute)
	require.True(t, ok)
	s.Run()
	assert.Len(t, out.got, 1)

	require.NoError(t, s.Start())
	s.Stop(context.Background())
}

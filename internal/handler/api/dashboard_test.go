package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSignal/internal/domain/models"
	"MarketSignal/internal/repository"
	"MarketSignal/internal/usecase"
	"MarketSignal/pkg/cache"
	applogger "MarketSignal/pkg/logger"
	"MarketSignal/pkg/metrics"
)

type stubSource struct{ headlines []models.Headline }

func (s *stubSource) Fetch(context.Context) ([]models.Headline, error) { return s.headlines, nil }

type stubClassifier struct {
	label models.Label
	err   error
}

func (c *stubClassifier) Classify(_ context.Context, text string) (models.SentimentObservation, error) {
	if c.err != nil {
		return models.SentimentObservation{}, c.err
	}
	return models.SentimentObservation{Text: text, Label: c.label, Confidence: 0.9}, nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, cls *stubClassifier) (*echo.Echo, *LiveHub) {
	t.Helper()
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })

	src := &stubSource{headlines: []models.Headline{
		{Title: "Stocks rally as earnings beat expectations across the board", Source: "test"},
		{Title: "Investors cheer upbeat outlook from major retailers today", Source: "test", Link: "https://example.com/a"},
	}}
	prices := repository.NewStaticPriceTable(
		[]string{"S&P 500", "Nasdaq", "Hang Seng"},
		map[string]float64{"S&P 500": 0.8, "Nasdaq": -0.5, "Hang Seng": -1.2},
		0.2,
	)
	dash := usecase.NewDashboard(src, cls, prices, repository.NopJournal{}, nil, metrics.Nop{}, mem, applogger.Nop(),
		usecase.DashboardConfig{Thresholds: models.DefaultThresholds(), HeadlineTTL: time.Hour})

	hub := NewLiveHub(applogger.Nop())
	t.Cleanup(hub.Close)
	e := echo.New()
	NewDashboardHandler(applogger.Nop(), dash, hub).RegisterRoutes(e.Group(""))
	return e, hub
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func TestIndices(t *testing.T) {
	e, _ := newTestServer(t, &stubClassifier{label: models.LabelPositive})
	rec := do(e, http.MethodGet, "/api/indices", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.IndexQuote
	decode(t, rec, &got)
	require.Len(t, got, 3)
	assert.Equal(t, "S&P 500", got[0].Name)
	assert.Equal(t, 0.8, got[0].PriceChange)
}

func TestDailySignal(t *testing.T) {
	e, _ := newTestServer(t, &stubClassifier{label: models.LabelPositive})

	rec := do(e, http.MethodGet, "/api/signal", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.DailySignal
	decode(t, rec, &got)
	assert.Equal(t, "S&P 500", got.Target)
	assert.Equal(t, models.SignalBuy, got.Signal)
	assert.InDelta(t, 0.9, got.SentimentValue, 1e-9)
	assert.Len(t, got.Headlines, 2)

	rec = do(e, http.MethodGet, "/api/signal?symbol=tsla&index=Nasdaq", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &got)
	assert.Equal(t, "TSLA", got.Target)
	assert.Equal(t, 0.2, got.PriceChange)
	assert.Equal(t, models.SignalHold, got.Signal)
}

func TestDailySignalValidation(t *testing.T) {
	e, _ := newTestServer(t, &stubClassifier{label: models.LabelPositive})
	rec := do(e, http.MethodGet, "/api/signal?symbol="+strings.Repeat("X", 20), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"symbol"`)

	rec = do(e, http.MethodGet, "/api/signal?index=%FF", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_UTF8")
}

func TestSocial(t *testing.T) {
	e, _ := newTestServer(t, &stubClassifier{label: models.LabelPositive})

	rec := do(e, http.MethodPost, "/api/social", `{"text":"Gold rallies as inflation fears grow"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.SocialSignal
	decode(t, rec, &got)
	assert.True(t, got.Matched)
	assert.Equal(t, "GLD", got.Rule.AssetLabel)
	assert.Equal(t, models.SignalSell, got.Signal)

	rec = do(e, http.MethodPost, "/api/social", `{"text":"nothing to see here"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &got)
	assert.False(t, got.Matched)
	assert.Equal(t, usecase.NoKeywordMessage, got.Message)

	for _, body := range []string{`{}`, `{"text":""}`, `{"text":"   "}`} {
		rec = do(e, http.MethodPost, "/api/social", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "ERR_UNPROCESSABLE", body)
	}
}

func TestSocialClassifierDown(t *testing.T) {
	e, _ := newTestServer(t, &stubClassifier{err: errors.New("connection refused")})
	rec := do(e, http.MethodPost, "/api/social", `{"text":"oil supply cut"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_UNAVAILABLE")
}

func TestHistoryUnavailable(t *testing.T) {
	e, _ := newTestServer(t, &stubClassifier{label: models.LabelPositive})
	rec := do(e, http.MethodGet, "/api/signals/history?target=Nasdaq", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(e, http.MethodGet, "/api/signals/history", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/signals/history?target=Nasdaq&since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"since"`)
}

func TestPage(t *testing.T) {
	e, _ := newTestServer(t, &stubClassifier{label: models.LabelPositive})
	rec := do(e, http.MethodGet, "/?index=Nasdaq&social="+url.QueryEscape("oil prices jump"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, "<title>Market Signal AI</title>")
	assert.Contains(t, body, "Recommendation for Nasdaq")
	assert.Contains(t, body, "Sentiment: POSITIVE (90.0%)")
	assert.Contains(t, body, "Price movement: <strong>-0.5%</strong>")
	assert.Contains(t, body, "Mixed signals")
	assert.Contains(t, body, "Buy USO")
	assert.Contains(t, body, "Built with")
	assert.Contains(t, body, `msg.type !== "daily_signal"`)
}

func TestLiveFeed(t *testing.T) {
	e, hub := newTestServer(t, &stubClassifier{label: models.LabelPositive})
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first struct {
		Type string             `json:"type"`
		Data models.DailySignal `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, usecase.SnapshotInitial, first.Type)
	assert.NotEqual(t, usecase.SnapshotRefresh, first.Type, "the page reloads on refresh messages")
	assert.Equal(t, "S&P 500", first.Data.Target)

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)
	hub.Broadcast(usecase.Snapshot{Type: "ping", Data: 1})

	var next usecase.Snapshot
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, "ping", next.Type)
}

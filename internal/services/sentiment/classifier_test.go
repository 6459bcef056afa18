package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSignal/internal/domain/models"
	"MarketSignal/pkg/cache"
	xhttp "MarketSignal/pkg/http"
)

func modelServer(t *testing.T, fn func(text string) (int, string)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/sentiment/classify" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req classifyReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		code, body := fn(req.Text)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestHTTPClassifier(t *testing.T) {
	srv, _ := modelServer(t, func(text string) (int, string) {
		if strings.Contains(text, "surge") {
			return http.StatusOK, `{"label":"positive","score":0.97}`
		}
		return http.StatusOK, `{"label":"NEGATIVE","score":0.8}`
	})
	c := NewHTTPClassifier(NewHTTPServiceBase(srv.URL, time.Second), 1)

	obs, err := c.Classify(context.Background(), "Stocks surge on earnings")
	require.NoError(t, err)
	assert.Equal(t, models.LabelPositive, obs.Label)
	assert.Equal(t, 0.97, obs.Confidence)
	assert.Equal(t, "Stocks surge on earnings", obs.Text)

	obs, err = c.Classify(context.Background(), "Markets slump")
	require.NoError(t, err)
	assert.Equal(t, models.LabelNegative, obs.Label)
}

func TestHTTPClassifierRejectsBlank(t *testing.T) {
	c := NewHTTPClassifier(NewHTTPServiceBase("http://unused", time.Second), 1)
	_, err := c.Classify(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestHTTPClassifierRetriesTransientOnly(t *testing.T) {
	var n int32
	srv, calls := modelServer(t, func(string) (int, string) {
		if atomic.AddInt32(&n, 1) < 3 {
			return http.StatusServiceUnavailable, `{}`
		}
		return http.StatusOK, `{"label":"NEUTRAL","score":0.6}`
	})
	c := NewHTTPClassifier(NewHTTPServiceBase(srv.URL, time.Second), 3)
	obs, err := c.Classify(context.Background(), "flat session")
	require.NoError(t, err)
	assert.Equal(t, models.LabelNeutral, obs.Label)
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))

	bad, badCalls := modelServer(t, func(string) (int, string) { return http.StatusBadRequest, `{"error":"x"}` })
	c = NewHTTPClassifier(NewHTTPServiceBase(bad.URL, time.Second), 3)
	_, err = c.Classify(context.Background(), "anything")
	var se *xhttp.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.EqualValues(t, 1, atomic.LoadInt32(badCalls))
}

type countingClassifier struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
	delay time.Duration
}

func (c *countingClassifier) Classify(_ context.Context, text string) (models.SentimentObservation, error) {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	c.calls[text]++
	c.mu.Unlock()
	if c.err != nil {
		return models.SentimentObservation{Text: text}, c.err
	}
	return models.SentimentObservation{Text: text, Label: models.LabelPositive, Confidence: 0.9}, nil
}

func TestCachedClassifier(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	inner := &countingClassifier{calls: map[string]int{}}
	c := NewCachedClassifier(inner, mem, time.Hour)

	for i := 0; i < 3; i++ {
		obs, err := c.Classify(context.Background(), "oil rallies")
		require.NoError(t, err)
		assert.Equal(t, models.LabelPositive, obs.Label)
	}
	assert.Equal(t, 1, inner.calls["oil rallies"])

	inner.err = errors.New("model down")
	_, err := c.Classify(context.Background(), "new text")
	assert.Error(t, err)
	_, err = c.Classify(context.Background(), "new text")
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls["new text"], "errors are not cached")
}

func TestClassifyAllKeepsOrder(t *testing.T) {
	inner := &countingClassifier{calls: map[string]int{}, delay: time.Millisecond}
	texts := []string{"a", "b", "c", "d", "e", "f"}

	out := ClassifyAll(context.Background(), inner, texts, 3)
	require.Len(t, out, len(texts))
	for i, o := range out {
		assert.NoError(t, o.Err)
		assert.Equal(t, texts[i], o.Observation.Text)
	}
}

func TestClassifyAllReportsPerTextErrors(t *testing.T) {
	inner := &countingClassifier{calls: map[string]int{}, err: errors.New("x")}
	out := ClassifyAll(context.Background(), inner, []string{"a", "b"}, 0)
	require.Len(t, out, 2)
	assert.Error(t, out[0].Err)
	assert.Error(t, out[1].Err)
	assert.Equal(t, 1, inner.calls["b"])
}

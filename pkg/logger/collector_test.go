package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPublisher struct {
	mu      sync.Mutex
	batches [][]AggregatedLogEntry
}

func (p *memPublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollectorDeduplicatesAndFlushesOnClose(t *testing.T) {
	pub := &memPublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})

	c.AddLog("error", "classify failed", map[string]interface{}{"k": "v"}, "x.go:1")
	c.AddLog("error", "classify failed", map[string]interface{}{"k": "v"}, "x.go:1")
	c.AddLog("error", "fetch failed", nil, "y.go:2")
	assert.Equal(t, 2, c.Pending())

	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	require.Len(t, pub.batches[0], 2)
	counts := map[string]int{}
	for _, e := range pub.batches[0] {
		counts[e.Message] = e.Count
	}
	assert.Equal(t, 2, counts["classify failed"])
	assert.Equal(t, 1, counts["fetch failed"])
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	pub := &memPublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Publisher: pub})

	l.Error("boom", Error(errors.New("x")))
	l.Warn("not collected")
	assert.Equal(t, 1, l.collector.Pending())
	l.RemoveCollector()
}

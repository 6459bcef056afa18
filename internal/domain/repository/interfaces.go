package repository

import (
	"context"
	"time"

	"MarketSignal/internal/domain/models"
)

// HeadlineSource yields the current batch of market headlines.
type HeadlineSource interface {
	Fetch(ctx context.Context) ([]models.Headline, error)
}

// PriceTable resolves a target (stock symbol or index name) to a daily move in percent.
type PriceTable interface {
	Lookup(target string) (float64, bool)
	Default() float64
	Indices() []models.IndexQuote
}

// SignalJournal records issued recommendations.
type SignalJournal interface {
	Record(ctx context.Context, ev *models.SignalEvent) error
	Close() error
}

// SignalHistory reads journaled recommendations back.
type SignalHistory interface {
	History(ctx context.Context, target string, since time.Time, limit int) ([]models.SignalEvent, error)
}

type Metrics interface {
	RecordSignal(kind, target string, s models.Signal)
	RecordError(kind string)
	RecordSentiment(target string, value float64)
	RecordLatency(op string, seconds float64)
}

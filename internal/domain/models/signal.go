package models

import "time"

// Signal is the discrete recommendation.
type Signal string

const (
	SignalBuy  Signal = "Buy"
	SignalSell Signal = "Sell"
	SignalHold Signal = "Hold"
)

// Polarity tells whether an asset rule inverts the positive-to-buy mapping.
type Polarity string

const (
	PolarityNormal   Polarity = "NORMAL"
	PolarityInverted Polarity = "INVERTED"
)

// AssetRule maps trigger keywords to a tradeable asset.
type AssetRule struct {
	Keywords   []string `json:"keywords"`
	AssetLabel string   `json:"asset"`
	Polarity   Polarity `json:"polarity"`
}

// Thresholds are the strict bounds used by the recommendation rule.
type Thresholds struct {
	Price     float64 `json:"price"`
	Sentiment float64 `json:"sentiment"`
}

// DefaultThresholds returns the stock 0.5% price / 0.2 sentiment bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{Price: 0.5, Sentiment: 0.2}
}

// SignalInput bundles everything the engine needs for one evaluation.
type SignalInput struct {
	PriceChangePercent float64
	Observations       []SentimentObservation
}

// SignalEvent is a journaled recommendation.
type SignalEvent struct {
	ID             string    `json:"id"`
	Target         string    `json:"target"`
	Kind           string    `json:"kind"` // "daily" | "social"
	Signal         Signal    `json:"signal"`
	PriceChange    float64   `json:"price_change"`
	SentimentValue float64   `json:"sentiment_value"`
	Observations   int       `json:"observations"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	EventKindDaily  = "daily"
	EventKindSocial = "social"
)

package models

import "time"

// ScoredHeadline pairs a headline with its classifier verdict.
type ScoredHeadline struct {
	Headline  Headline             `json:"headline"`
	Sentiment SentimentObservation `json:"sentiment"`
}

// DailySignal is the main dashboard panel.
// Note: no transport (json/http) concerns beyond tags here.
type DailySignal struct {
	Target         string           `json:"target"`
	PriceChange    float64          `json:"price_change"`
	SentimentValue float64          `json:"sentiment_value"`
	Signal         Signal           `json:"signal"`
	Explanation    string           `json:"explanation"`
	Headlines      []ScoredHeadline `json:"headlines"`
	Warning        string           `json:"warning,omitempty"`
	Thresholds     Thresholds       `json:"thresholds"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// SocialSignal is the keyword-triggered panel result.
type SocialSignal struct {
	Text      string                `json:"text"`
	Matched   bool                  `json:"matched"`
	Rule      *AssetRule            `json:"rule,omitempty"`
	Sentiment *SentimentObservation `json:"sentiment,omitempty"`
	Signal    Signal                `json:"signal,omitempty"`
	Message   string                `json:"message"`
}

// IndexQuote is a row of the static price table.
type IndexQuote struct {
	Name        string  `json:"name"`
	PriceChange float64 `json:"price_change"`
}

package models

import "time"

// Label is the polarity emitted by the sentiment classifier.
type Label string

const (
	LabelPositive Label = "POSITIVE"
	LabelNegative Label = "NEGATIVE"
	LabelNeutral  Label = "NEUTRAL"
)

// SentimentObservation is one classifier verdict for a piece of text.
type SentimentObservation struct {
	Text       string  `json:"text"`
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"` // [0,1]
}

// Headline is a scraped news title.
type Headline struct {
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Link      string    `json:"link,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

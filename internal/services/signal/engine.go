package signal

import (
	"errors"
	"fmt"
	"math"

	"MarketSignal/internal/domain/models"
)

var (
	ErrUnknownLabel      = errors.New("signal: unknown sentiment label")
	ErrInvalidConfidence = errors.New("signal: confidence outside [0,1]")
	ErrNonFinitePrice    = errors.New("signal: price change is not finite")
)

// Result is the output of a full evaluation.
type Result struct {
	SentimentValue float64
	Signal         models.Signal
}

// Aggregate returns the mean signed confidence of the observations.
// POSITIVE counts +c, NEGATIVE counts -c, NEUTRAL counts 0 but still
// takes part in the mean. An empty slice yields exactly 0.
func Aggregate(obs []models.SentimentObservation) (float64, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	sum := 0.0
	for i, o := range obs {
		v, err := signed(o)
		if err != nil {
			return 0, fmt.Errorf("observation %d: %w", i, err)
		}
		sum += v
	}
	return sum / float64(len(obs)), nil
}

// Validate reports whether an observation has a known label and a confidence in [0,1].
func Validate(o models.SentimentObservation) error {
	_, err := signed(o)
	return err
}

func signed(o models.SentimentObservation) (float64, error) {
	c := o.Confidence
	if math.IsNaN(c) || c < 0 || c > 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidConfidence, c)
	}
	switch o.Label {
	case models.LabelPositive:
		return c, nil
	case models.LabelNegative:
		return -c, nil
	case models.LabelNeutral:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, o.Label)
	}
}

// Recommend applies the strict-threshold rule. It is total: NaN on either
// side fails every comparison and lands on HOLD.
func Recommend(priceChangePercent, sentimentValue float64, th models.Thresholds) models.Signal {
	if priceChangePercent > th.Price && sentimentValue > th.Sentiment {
		return models.SignalBuy
	}
	if priceChangePercent < -th.Price && sentimentValue < -th.Sentiment {
		return models.SignalSell
	}
	return models.SignalHold
}

// Evaluate aggregates the observations and applies Recommend.
func Evaluate(in models.SignalInput, th models.Thresholds) (Result, error) {
	if math.IsNaN(in.PriceChangePercent) || math.IsInf(in.PriceChangePercent, 0) {
		return Result{}, ErrNonFinitePrice
	}
	v, err := Aggregate(in.Observations)
	if err != nil {
		return Result{}, err
	}
	return Result{SentimentValue: v, Signal: Recommend(in.PriceChangePercent, v, th)}, nil
}

// Explain returns the human-readable rationale shown under the signal.
func Explain(s models.Signal) string {
	switch s {
	case models.SignalBuy:
		return "Positive momentum and news sentiment suggest a buying opportunity."
	case models.SignalSell:
		return "Negative sentiment and price drop indicate caution."
	default:
		return "Mixed signals – best to hold for now."
	}
}

package sentiment

import (
	"context"

	"golang.org/x/sync/errgroup"

	"MarketSignal/internal/domain/models"
	domsvc "MarketSignal/internal/domain/service"
)

// Outcome is the per-text result of ClassifyAll.
type Outcome struct {
	Observation models.SentimentObservation
	Err         error
}

// ClassifyAll scores texts with at most workers concurrent calls. The result
// has one entry per input, in input order. A failed text does not stop the others.
func ClassifyAll(ctx context.Context, c domsvc.Classifier, texts []string, workers int) []Outcome {
	out := make([]Outcome, len(texts))
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, text := range texts {
		g.Go(func() error {
			obs, err := c.Classify(gctx, text)
			out[i] = Outcome{Observation: obs, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

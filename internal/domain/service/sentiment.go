package service

import (
	"context"

	"MarketSignal/internal/domain/models"
)

// Classifier scores a piece of text with a pre-trained sentiment model.
type Classifier interface {
	Classify(ctx context.Context, text string) (models.SentimentObservation, error)
}

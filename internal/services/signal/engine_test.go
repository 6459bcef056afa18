package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSignal/internal/domain/models"
)

func obs(l models.Label, c float64) models.SentimentObservation {
	return models.SentimentObservation{Text: "headline", Label: l, Confidence: c}
}

func TestAggregateEmpty(t *testing.T) {
	v, err := Aggregate(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = Aggregate([]models.SentimentObservation{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestAggregateSingle(t *testing.T) {
	v, err := Aggregate([]models.SentimentObservation{obs(models.LabelPositive, 0.9)})
	require.NoError(t, err)
	assert.Equal(t, 0.9, v)

	v, err = Aggregate([]models.SentimentObservation{obs(models.LabelNegative, 0.9)})
	require.NoError(t, err)
	assert.Equal(t, -0.9, v)
}

func TestAggregateMeanInvariance(t *testing.T) {
	one, err := Aggregate([]models.SentimentObservation{obs(models.LabelNegative, 0.75)})
	require.NoError(t, err)

	many := make([]models.SentimentObservation, 7)
	for i := range many {
		many[i] = obs(models.LabelNegative, 0.75)
	}
	got, err := Aggregate(many)
	require.NoError(t, err)
	assert.InDelta(t, one, got, 1e-12)
}

func TestAggregateMixed(t *testing.T) {
	v, err := Aggregate([]models.SentimentObservation{
		obs(models.LabelPositive, 0.8),
		obs(models.LabelNegative, 0.4),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, v, 1e-12)
}

func TestAggregateNeutralDilutes(t *testing.T) {
	v, err := Aggregate([]models.SentimentObservation{
		obs(models.LabelPositive, 0.9),
		obs(models.LabelNeutral, 0.99),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.45, v, 1e-12)
}

func TestAggregateRejectsBadInput(t *testing.T) {
	_, err := Aggregate([]models.SentimentObservation{obs("MIXED", 0.5)})
	assert.ErrorIs(t, err, ErrUnknownLabel)

	for _, c := range []float64{-0.1, 1.01, math.NaN(), math.Inf(1)} {
		_, err := Aggregate([]models.SentimentObservation{obs(models.LabelPositive, c)})
		assert.ErrorIs(t, err, ErrInvalidConfidence, "confidence %v", c)
	}
}

func TestAggregateBounded(t *testing.T) {
	v, err := Aggregate([]models.SentimentObservation{
		obs(models.LabelPositive, 1),
		obs(models.LabelPositive, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = Aggregate([]models.SentimentObservation{obs(models.LabelNegative, 1)})
	require.NoError(t, err)
	assert.Equal(t, -1.0, v)
}

func TestRecommend(t *testing.T) {
	th := models.DefaultThresholds()
	cases := []struct {
		name      string
		price     float64
		sentiment float64
		want      models.Signal
	}{
		{"buy", 0.8, 0.3, models.SignalBuy},
		{"sell", -0.8, -0.3, models.SignalSell},
		{"price below threshold", 0.1, 0.9, models.SignalHold},
		{"sentiment at boundary", 0.6, 0.2, models.SignalHold},
		{"price at boundary", 0.5, 0.9, models.SignalHold},
		{"negative price at boundary", -0.5, -0.9, models.SignalHold},
		{"negative sentiment at boundary", -0.9, -0.2, models.SignalHold},
		{"divergent", 1.1, -0.6, models.SignalHold},
		{"nan price", math.NaN(), 0.9, models.SignalHold},
		{"nan sentiment", -3, math.NaN(), models.SignalHold},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Recommend(tc.price, tc.sentiment, th))
		})
	}
}

func TestRecommendCustomThresholds(t *testing.T) {
	th := models.Thresholds{Price: 1.0, Sentiment: 0.5}
	assert.Equal(t, models.SignalHold, Recommend(0.8, 0.3, th))
	assert.Equal(t, models.SignalBuy, Recommend(1.2, 0.6, th))
	assert.Equal(t, models.SignalSell, Recommend(-1.2, -0.6, th))
}

func TestRecommendNeverBuyAndSell(t *testing.T) {
	th := models.DefaultThresholds()
	values := []float64{-2, -0.51, -0.5, -0.21, -0.2, 0, 0.2, 0.21, 0.5, 0.51, 2}
	for _, p := range values {
		for _, s := range values {
			got := Recommend(p, s, th)
			if got == models.SignalBuy {
				assert.True(t, p > 0 && s > 0)
			}
			if got == models.SignalSell {
				assert.True(t, p < 0 && s < 0)
			}
		}
	}
}

func TestEvaluate(t *testing.T) {
	res, err := Evaluate(models.SignalInput{
		PriceChangePercent: 1.1,
		Observations: []models.SentimentObservation{
			obs(models.LabelPositive, 0.95),
			obs(models.LabelPositive, 0.6),
		},
	}, models.DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, models.SignalBuy, res.Signal)
	assert.InDelta(t, 0.775, res.SentimentValue, 1e-12)

	res, err = Evaluate(models.SignalInput{PriceChangePercent: 0.8}, models.DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, models.SignalHold, res.Signal)
	assert.Equal(t, 0.0, res.SentimentValue)
}

func TestEvaluateRejectsNonFinitePrice(t *testing.T) {
	_, err := Evaluate(models.SignalInput{PriceChangePercent: math.NaN()}, models.DefaultThresholds())
	assert.ErrorIs(t, err, ErrNonFinitePrice)
	_, err = Evaluate(models.SignalInput{PriceChangePercent: math.Inf(-1)}, models.DefaultThresholds())
	assert.ErrorIs(t, err, ErrNonFinitePrice)
}

func TestExplain(t *testing.T) {
	assert.Contains(t, Explain(models.SignalBuy), "buying opportunity")
	assert.Contains(t, Explain(models.SignalSell), "caution")
	assert.Contains(t, Explain(models.SignalHold), "hold")
}

package signal

import (
	"strings"

	"MarketSignal/internal/domain/models"
)

// AssetRules is the keyword table in priority order. First match wins.
var AssetRules = []models.AssetRule{
	{Keywords: []string{"oil", "energy"}, AssetLabel: "USO", Polarity: models.PolarityNormal},
	{Keywords: []string{"china", "tariff"}, AssetLabel: "SPY", Polarity: models.PolarityNormal},
	{Keywords: []string{"inflation", "gold"}, AssetLabel: "GLD", Polarity: models.PolarityInverted},
}

// MatchAsset finds the first rule with a keyword contained in the lower-cased text.
func MatchAsset(text string) (models.AssetRule, bool) {
	return MatchAssetIn(AssetRules, text)
}

// MatchAssetIn is MatchAsset over an explicit rule table.
func MatchAssetIn(rules []models.AssetRule, text string) (models.AssetRule, bool) {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r, true
			}
		}
	}
	return models.AssetRule{}, false
}

// AssetAction maps a matched rule plus the text's sentiment to BUY or SELL:
// BUY iff (label is POSITIVE) XOR (polarity is INVERTED).
// A NEUTRAL verdict carries no direction and yields HOLD.
func AssetAction(rule models.AssetRule, obs models.SentimentObservation) models.Signal {
	if obs.Label == models.LabelNeutral {
		return models.SignalHold
	}
	positive := obs.Label == models.LabelPositive
	inverted := rule.Polarity == models.PolarityInverted
	if positive != inverted {
		return models.SignalBuy
	}
	return models.SignalSell
}

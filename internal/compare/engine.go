// Package compare implements the price differential engine and the
// orchestrator that runs one bounded comparison batch.
package compare

import (
	"math"

	"github.com/guarzo/pricegap/internal/model"
)

// Round2 rounds to two decimal places, half away from zero. The pinned
// fixture values (33.33, -25.00) assume this rule; keep it in sync with
// the tests if it ever changes.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Evaluate computes the percentage deviation for each matched pair and
// keeps the pairs that cross either inclusive threshold: wholesale at
// least highPct percent more expensive, or at least lowPct percent
// cheaper, than the marketplace price.
//
// The marketplace price is the denominator. Pairs missing a price on
// either side are skipped, as are pairs with a marketplace price of
// exactly zero. Pure function: same pairs and thresholds, same results.
func Evaluate(pairs []model.MatchedPair, lowPct, highPct float64) []model.ComparisonResult {
	results := make([]model.ComparisonResult, 0, len(pairs))

	for _, pair := range pairs {
		if !pair.Wholesale.HasPrice() || !pair.Marketplace.HasPrice() {
			continue
		}

		wholesalePrice := *pair.Wholesale.Price
		marketplacePrice := *pair.Marketplace.Price
		if marketplacePrice == 0 {
			continue
		}

		difference := wholesalePrice - marketplacePrice
		percentage := difference / marketplacePrice * 100

		if percentage >= highPct || percentage <= -lowPct {
			results = append(results, model.ComparisonResult{
				WholesaleName:        pair.Wholesale.Name,
				WholesalePrice:       wholesalePrice,
				WholesaleURL:         pair.Wholesale.URL,
				MarketplaceName:      pair.Marketplace.Name,
				MarketplacePrice:     marketplacePrice,
				MarketplaceURL:       pair.Marketplace.URL,
				PriceDifference:      difference,
				PercentageDifference: Round2(percentage),
			})
		}
	}

	return results
}

package compare

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/guarzo/pricegap/internal/match"
	"github.com/guarzo/pricegap/internal/model"
)

// WholesaleSource produces the wholesale side of a comparison batch.
// Satisfied by the catalog scraper.
type WholesaleSource interface {
	Search(ctx context.Context, keyword string) ([]model.ProductRecord, error)
}

// MarketplaceSource is the authenticated API side. Satisfied by
// spapi.Client.
type MarketplaceSource interface {
	SearchProducts(ctx context.Context, keyword string, pageSize int) ([]model.ProductRecord, error)
	LookupPrice(ctx context.Context, asin string) (*float64, error)
}

// Orchestrator sequences one comparison run: wholesale batch, marketplace
// search, matching, per-pair price lookup, differential evaluation.
type Orchestrator struct {
	wholesale   WholesaleSource
	marketplace MarketplaceSource
	lowPct      float64
	highPct     float64
	pageSize    int
}

// RunResult is the boundary artifact handed to the CLI/HTTP front end.
type RunResult struct {
	Keyword string                   `json:"keyword"`
	Results []model.ComparisonResult `json:"results"`
}

// New creates an orchestrator with the given deviation thresholds.
func New(wholesale WholesaleSource, marketplace MarketplaceSource, lowPct, highPct float64) *Orchestrator {
	return &Orchestrator{
		wholesale:   wholesale,
		marketplace: marketplace,
		lowPct:      lowPct,
		highPct:     highPct,
		pageSize:    10,
	}
}

// Run performs one bounded comparison batch for a keyword. A failed price
// lookup drops that pair and continues; partial results beat total
// failure. Failures of either search abort the run, since there is no
// batch without them.
func (o *Orchestrator) Run(ctx context.Context, keyword string) (*RunResult, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, &model.ValidationError{Field: "keyword", Reason: "must not be empty"}
	}

	wholesaleRecords, err := o.wholesale.Search(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("wholesale search: %w", err)
	}
	log.Printf("[INFO] wholesale search %q: %d records", keyword, len(wholesaleRecords))

	marketplaceRecords, err := o.marketplace.SearchProducts(ctx, keyword, o.pageSize)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] marketplace search %q: %d records", keyword, len(marketplaceRecords))

	pairs := match.Pairs(wholesaleRecords, marketplaceRecords)

	priced := make([]model.MatchedPair, 0, len(pairs))
	// The same marketplace record can back several pairs; look each ASIN
	// up once per run.
	looked := make(map[string]*float64)
	for _, p := range pairs {
		if !p.Marketplace.HasPrice() {
			price, ok := looked[p.Marketplace.ExternalID]
			if !ok {
				price, err = o.marketplace.LookupPrice(ctx, p.Marketplace.ExternalID)
				if err != nil {
					log.Printf("[WARN] price lookup failed for %s: %v", p.Marketplace.ExternalID, err)
					looked[p.Marketplace.ExternalID] = nil
					continue
				}
				looked[p.Marketplace.ExternalID] = price
			}
			if price == nil {
				continue
			}
			p.Marketplace.Price = price
		}
		priced = append(priced, p)
	}

	results := Evaluate(priced, o.lowPct, o.highPct)
	log.Printf("[INFO] comparison %q: %d pairs, %d beyond thresholds", keyword, len(pairs), len(results))

	return &RunResult{Keyword: keyword, Results: results}, nil
}

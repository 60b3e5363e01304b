package model

// Source identifies which side of a comparison a record came from.
type Source string

const (
	SourceWholesale   Source = "wholesale"
	SourceMarketplace Source = "marketplace"
)

// ProductRecord is the common shape both source adapters normalize into.
// Price is nil when the source did not return pricing: the catalog search
// endpoint never does, a separate price lookup fills it in later.
type ProductRecord struct {
	Source     Source
	Name       string
	Price      *float64 // may be nil
	URL        string
	ExternalID string // marketplace ASIN; empty for wholesale records
}

// HasPrice reports whether the record carries a usable price.
func (p ProductRecord) HasPrice() bool {
	return p.Price != nil && *p.Price >= 0
}

// Price returns a pointer to v, for building records with a known price.
func Price(v float64) *float64 {
	return &v
}

// MatchedPair links one wholesale record to the first marketplace record
// that qualified for it. The same marketplace record may appear in
// multiple pairs.
type MatchedPair struct {
	Wholesale   ProductRecord
	Marketplace ProductRecord
}

// ComparisonResult is the terminal artifact of one comparison run.
type ComparisonResult struct {
	WholesaleName    string  `json:"wholesale_name"`
	WholesalePrice   float64 `json:"wholesale_price"`
	WholesaleURL     string  `json:"wholesale_url"`
	MarketplaceName  string  `json:"marketplace_name"`
	MarketplacePrice float64 `json:"marketplace_price"`
	MarketplaceURL   string  `json:"marketplace_url"`
	PriceDifference  float64 `json:"price_difference"`
	// PercentageDifference is (wholesale - marketplace) / marketplace * 100,
	// rounded to two decimal places.
	PercentageDifference float64 `json:"percentage_difference"`
}

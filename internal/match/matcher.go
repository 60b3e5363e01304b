// Package match pairs wholesale records with marketplace records that
// share no common identifier, using name-containment heuristics.
package match

import (
	"strings"

	"github.com/guarzo/pricegap/internal/model"
)

// Pairs scans marketplace records in input order for each wholesale record
// and selects the first whose case-folded name contains, or is contained
// in, the wholesale name. The scan is greedy and order-dependent: the
// ordering of the marketplace slice is part of the contract, and the same
// marketplace record may pair with several wholesale records.
//
// Records with an empty name on either side never match. A wholesale
// record with no qualifying marketplace record simply produces no pair.
func Pairs(wholesale, marketplace []model.ProductRecord) []model.MatchedPair {
	var pairs []model.MatchedPair

	for _, w := range wholesale {
		wName := strings.ToLower(strings.TrimSpace(w.Name))
		if wName == "" {
			continue
		}
		for _, m := range marketplace {
			mName := strings.ToLower(strings.TrimSpace(m.Name))
			if mName == "" {
				continue
			}
			if strings.Contains(wName, mName) || strings.Contains(mName, wName) {
				pairs = append(pairs, model.MatchedPair{Wholesale: w, Marketplace: m})
				break
			}
		}
	}

	return pairs
}

package compare

import (
	"reflect"
	"testing"

	"github.com/guarzo/pricegap/internal/model"
)

func pair(wholesalePrice, marketplacePrice *float64) model.MatchedPair {
	return model.MatchedPair{
		Wholesale: model.ProductRecord{
			Source: model.SourceWholesale, Name: "w", Price: wholesalePrice, URL: "costco.jp/w",
		},
		Marketplace: model.ProductRecord{
			Source: model.SourceMarketplace, Name: "m", Price: marketplacePrice, URL: "amazon.co.jp/m",
		},
	}
}

func TestEvaluateThresholds(t *testing.T) {
	tests := []struct {
		name        string
		wholesale   float64
		marketplace float64
		included    bool
		wantPct     float64
	}{
		{"notably more expensive", 12000, 9000, true, 33.33},
		{"notably cheaper at the boundary", 750, 1000, true, -25.00},
		{"equal prices", 1000, 1000, false, 0},
		{"exactly at high threshold", 1200, 1000, true, 20.00},
		{"just under high threshold", 1199, 1000, false, 0},
		{"cheaper but above low threshold", 800, 1000, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := Evaluate(
				[]model.MatchedPair{pair(model.Price(tt.wholesale), model.Price(tt.marketplace))},
				25, 20,
			)
			if got := len(results) == 1; got != tt.included {
				t.Fatalf("included = %v, want %v", got, tt.included)
			}
			if !tt.included {
				return
			}
			r := results[0]
			if r.PercentageDifference != tt.wantPct {
				t.Errorf("percentage = %v, want %v", r.PercentageDifference, tt.wantPct)
			}
			if r.PriceDifference != tt.wholesale-tt.marketplace {
				t.Errorf("difference = %v", r.PriceDifference)
			}
		})
	}
}

func TestEvaluateSkipsUnpricedAndZero(t *testing.T) {
	pairs := []model.MatchedPair{
		// price absent on either side, then a zero denominator
		pair(nil, model.Price(1000)),
		pair(model.Price(1000), nil),
		pair(model.Price(1000), model.Price(0)),
		pair(model.Price(12000), model.Price(9000)),
	}

	results := Evaluate(pairs, 25, 20)
	if len(results) != 1 {
		t.Fatalf("got %d results, want only the priced pair", len(results))
	}
	if results[0].WholesalePrice != 12000 {
		t.Errorf("surviving pair = %+v", results[0])
	}
}

func TestEvaluateThresholdsAreConfiguration(t *testing.T) {
	pairs := []model.MatchedPair{pair(model.Price(1100), model.Price(1000))} // +10%

	if got := Evaluate(pairs, 25, 20); len(got) != 0 {
		t.Errorf("included at 20/25 defaults: %+v", got)
	}
	if got := Evaluate(pairs, 25, 10); len(got) != 1 {
		t.Errorf("excluded at a 10%% high threshold")
	}
	if got := Evaluate([]model.MatchedPair{pair(model.Price(900), model.Price(1000))}, 10, 20); len(got) != 1 {
		t.Errorf("excluded at a 10%% low threshold")
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	pairs := []model.MatchedPair{
		pair(model.Price(12000), model.Price(9000)),
		pair(model.Price(750), model.Price(1000)),
	}

	first := Evaluate(pairs, 25, 20)
	second := Evaluate(pairs, 25, 20)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Evaluate is not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{33.33333, 33.33},
		{-25.0, -25.0},
		{0.005, 0.01}, // half rounds away from zero
		{-0.005, -0.01},
		{12.345678, 12.35},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

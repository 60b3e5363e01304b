// Package report writes comparison results to CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/guarzo/pricegap/internal/model"
)

var csvHeader = []string{
	"wholesale_name", "wholesale_price", "wholesale_url",
	"marketplace_name", "marketplace_price", "marketplace_url",
	"price_difference", "percentage_difference",
}

// WriteResults writes results as CSV with a header row. Text cells are
// escaped against spreadsheet formula injection.
func WriteResults(w io.Writer, results []model.ComparisonResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range results {
		row := []string{
			escapeCell(r.WholesaleName),
			formatPrice(r.WholesalePrice),
			escapeCell(r.WholesaleURL),
			escapeCell(r.MarketplaceName),
			formatPrice(r.MarketplacePrice),
			escapeCell(r.MarketplaceURL),
			formatPrice(r.PriceDifference),
			strconv.FormatFloat(r.PercentageDifference, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveResults writes results to a file, creating or truncating it.
func SaveResults(path string, results []model.ComparisonResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := WriteResults(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// escapeCell protects against CSV formula injection by prefixing cells
// that a spreadsheet would interpret as a formula.
func escapeCell(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '|', '%', '\t', '\r', '\n':
		return "'" + value
	}
	return value
}

// File: internal/perception/prices.go
package perception

import (
	"sort"
	"strconv"
	"strings"

	"github.com/xkilldash9x/bidrunner/api/schemas"
)

// DefaultConfidenceThreshold is used when a profile leaves the OCR threshold at zero.
const DefaultConfidenceThreshold = 0.6

// ExtractNumericPrices keeps lines whose confidence is strictly above threshold,
// strips every non-digit character and orders the survivors top of screen first.
// Lines without digits, or whose digits overflow int64, are dropped.
func ExtractNumericPrices(lines []schemas.OCRLine, threshold float64) []schemas.PerceivedPrice {
	prices := make([]schemas.PerceivedPrice, 0, len(lines))
	for _, line := range lines {
		if line.Confidence <= threshold {
			continue
		}
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, line.Text)
		if digits == "" {
			continue
		}
		value, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			continue
		}
		prices = append(prices, schemas.PerceivedPrice{
			Value:            value,
			Confidence:       line.Confidence,
			VerticalPosition: line.Box.Min.Y,
		})
	}
	sort.SliceStable(prices, func(i, j int) bool {
		return prices[i].VerticalPosition < prices[j].VerticalPosition
	})
	return prices
}

// TopPrice returns the highest price on screen, or false if no line qualified.
func TopPrice(lines []schemas.OCRLine, threshold float64) (schemas.PerceivedPrice, bool) {
	prices := ExtractNumericPrices(lines, threshold)
	if len(prices) == 0 {
		return schemas.PerceivedPrice{}, false
	}
	return prices[0], true
}

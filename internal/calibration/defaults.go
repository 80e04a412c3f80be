// File: internal/calibration/defaults.go
package calibration

import "time"

// Default returns the built-in profile used whenever no valid profile can be loaded.
// The layout targets a 1080x2400 portrait display showing six rows per screen.
func Default() Profile {
	return Profile{
		Name:         "default",
		ScreenWidth:  1080,
		ScreenHeight: 2400,

		FirstRow:      Point{X: 0.50, Y: 0.28},
		EditTarget:    Point{X: 0.86, Y: 0.28},
		RowPitch:      0.095,
		RowsPerScreen: 6,

		PriceField:    Point{X: 0.50, Y: 0.62},
		ConfirmButton: Point{X: 0.70, Y: 0.78},
		CloseButton:   Point{X: 0.92, Y: 0.18},

		SwipeStart: Point{X: 0.50, Y: 0.80},
		SwipeEnd:   Point{X: 0.50, Y: 0.25},

		BuyOrdersRegion:    Rect{Left: 0.08, Top: 0.30, Right: 0.92, Bottom: 0.55},
		MarketPriceRegion:  Rect{Left: 0.08, Top: 0.30, Right: 0.92, Bottom: 0.40},
		CurrentPriceRegion: Rect{Left: 0.20, Top: 0.58, Right: 0.80, Bottom: 0.66},
		ListRegion:         Rect{Left: 0.04, Top: 0.22, Right: 0.96, Bottom: 0.82},

		HighlightColor:         "#2E7D32",
		ColorTolerance:         40,
		OCRConfidenceThreshold: 0.6,

		HardPriceCap:   100000,
		PriceIncrement: 1,

		Timing: Timing{
			TapDuration:    80 * time.Millisecond,
			SwipeDuration:  450 * time.Millisecond,
			PopupOpenWait:  900 * time.Millisecond,
			PopupCloseWait: 700 * time.Millisecond,
			TextInputDelay: 250 * time.Millisecond,
			PollInterval:   500 * time.Millisecond,
			ScrollSettle:   1200 * time.Millisecond,
		},
	}
}

// File: internal/calibration/profile.go
// Package calibration holds the screen layout a session runs against: percentage based
// coordinates, OCR regions, color thresholds, pricing limits and timing constants.
// A Profile is a value; the controller snapshots it at session start.
package calibration

import (
	"errors"
	"fmt"
	"image"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidProfile is wrapped by every Validate failure.
var ErrInvalidProfile = errors.New("invalid calibration profile")

// Point is a screen position as fractions of the screen width and height.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// IsZero reports whether the point was left uncalibrated.
func (p Point) IsZero() bool { return p.X == 0 && p.Y == 0 }

// Rect is a screen region as fractions of the screen width and height.
type Rect struct {
	Left   float64 `yaml:"left"`
	Top    float64 `yaml:"top"`
	Right  float64 `yaml:"right"`
	Bottom float64 `yaml:"bottom"`
}

// Timing groups the fixed waits and gesture durations of a layout.
type Timing struct {
	TapDuration    time.Duration
	SwipeDuration  time.Duration
	PopupOpenWait  time.Duration
	PopupCloseWait time.Duration
	TextInputDelay time.Duration
	PollInterval   time.Duration
	ScrollSettle   time.Duration
}

// Profile is a complete calibration record.
type Profile struct {
	Name         string `yaml:"name"`
	ScreenWidth  int    `yaml:"screen_width"`
	ScreenHeight int    `yaml:"screen_height"`

	// Row geometry. Row n on the current screen sits RowPitch below row n-1.
	FirstRow      Point   `yaml:"first_row"`
	EditTarget    Point   `yaml:"edit_target"`
	RowPitch      float64 `yaml:"row_pitch"`
	RowsPerScreen int     `yaml:"rows_per_screen"`

	// Popup controls.
	PriceField    Point `yaml:"price_field"`
	ConfirmButton Point `yaml:"confirm_button"`
	CreateButton  Point `yaml:"create_button"`
	CloseButton   Point `yaml:"close_button"`

	SwipeStart Point `yaml:"swipe_start"`
	SwipeEnd   Point `yaml:"swipe_end"`

	// OCR regions.
	BuyOrdersRegion    Rect `yaml:"buy_orders_region"`
	MarketPriceRegion  Rect `yaml:"market_price_region"`
	CurrentPriceRegion Rect `yaml:"current_price_region"`
	ListRegion         Rect `yaml:"list_region"`

	HighlightColor         string  `yaml:"highlight_color"`
	ColorTolerance         int     `yaml:"color_tolerance"`
	OCRConfidenceThreshold float64 `yaml:"ocr_confidence_threshold"`

	HardPriceCap   int64 `yaml:"hard_price_cap"`
	PriceIncrement int64 `yaml:"price_increment"`

	Timing Timing `yaml:"timing"`
}

// -- Resolution --

// Resolve converts a percentage point to pixels.
func (p Profile) Resolve(pt Point) image.Point {
	return image.Pt(
		int(math.Round(pt.X*float64(p.ScreenWidth))),
		int(math.Round(pt.Y*float64(p.ScreenHeight))),
	)
}

// ResolveRect converts a percentage rectangle to a canonical pixel rectangle.
func (p Profile) ResolveRect(r Rect) image.Rectangle {
	min := p.Resolve(Point{X: r.Left, Y: r.Top})
	max := p.Resolve(Point{X: r.Right, Y: r.Bottom})
	return image.Rectangle{Min: min, Max: max}.Canon()
}

// RowSlot is the on-screen slot of a row index.
func (p Profile) RowSlot(rowIndex int) int {
	if p.RowsPerScreen <= 0 {
		return 0
	}
	return rowIndex % p.RowsPerScreen
}

// RowAnchor is the pixel position tapped to open row rowIndex in sweep mode.
func (p Profile) RowAnchor(rowIndex int) image.Point {
	return p.Resolve(p.rowOffset(p.FirstRow, rowIndex))
}

// EditAnchor is the pixel position of the edit control on row rowIndex.
func (p Profile) EditAnchor(rowIndex int) image.Point {
	return p.Resolve(p.rowOffset(p.EditTarget, rowIndex))
}

func (p Profile) rowOffset(base Point, rowIndex int) Point {
	return Point{X: base.X, Y: base.Y + float64(p.RowSlot(rowIndex))*p.RowPitch}
}

// HasCreateButton reports whether a create button was calibrated.
func (p Profile) HasCreateButton() bool { return !p.CreateButton.IsZero() }

// -- Validation --

// Validate checks every invariant of the profile.
func (p Profile) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if p.ScreenWidth <= 0 || p.ScreenHeight <= 0 {
		add("screen resolution must be positive, got %dx%d", p.ScreenWidth, p.ScreenHeight)
	}

	points := map[string]Point{
		"first_row":      p.FirstRow,
		"edit_target":    p.EditTarget,
		"price_field":    p.PriceField,
		"confirm_button": p.ConfirmButton,
		"create_button":  p.CreateButton,
		"close_button":   p.CloseButton,
		"swipe_start":    p.SwipeStart,
		"swipe_end":      p.SwipeEnd,
	}
	for _, name := range sortedKeys(points) {
		pt := points[name]
		if !inUnit(pt.X) || !inUnit(pt.Y) {
			add("%s must lie within [0,1], got (%g, %g)", name, pt.X, pt.Y)
		}
	}

	regions := map[string]Rect{
		"buy_orders_region":    p.BuyOrdersRegion,
		"market_price_region":  p.MarketPriceRegion,
		"current_price_region": p.CurrentPriceRegion,
		"list_region":          p.ListRegion,
	}
	for _, name := range sortedKeys(regions) {
		r := regions[name]
		if !inUnit(r.Left) || !inUnit(r.Top) || !inUnit(r.Right) || !inUnit(r.Bottom) {
			add("%s must lie within [0,1]", name)
		} else if r.Right <= r.Left || r.Bottom <= r.Top {
			add("%s must have a positive area", name)
		}
	}

	if !inUnit(p.RowPitch) {
		add("row_pitch must lie within [0,1], got %g", p.RowPitch)
	}
	if p.RowsPerScreen <= 0 {
		add("rows_per_screen must be positive, got %d", p.RowsPerScreen)
	}
	if !inUnit(p.OCRConfidenceThreshold) {
		add("ocr_confidence_threshold must lie within [0,1], got %g", p.OCRConfidenceThreshold)
	}
	if p.ColorTolerance < 0 || p.ColorTolerance > 255 {
		add("color_tolerance must lie within [0,255], got %d", p.ColorTolerance)
	}
	if !isHexColor(p.HighlightColor) {
		add("highlight_color must be #RRGGBB, got %q", p.HighlightColor)
	}
	if p.HardPriceCap <= 0 {
		add("hard_price_cap must be positive")
	}
	if p.PriceIncrement <= 0 {
		add("price_increment must be positive")
	}

	t := p.Timing
	for _, d := range []struct {
		name string
		d    time.Duration
	}{
		{"tap_duration", t.TapDuration},
		{"swipe_duration", t.SwipeDuration},
		{"popup_open_wait", t.PopupOpenWait},
		{"popup_close_wait", t.PopupCloseWait},
		{"text_input_delay", t.TextInputDelay},
		{"poll_interval", t.PollInterval},
		{"scroll_settle", t.ScrollSettle},
	} {
		if d.d < 0 {
			add("timing.%s must not be negative", d.name)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(problems, "; "))
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 && !math.IsNaN(v) }

func isHexColor(s string) bool {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return false
	}
	_, err := strconv.ParseUint(s, 16, 32)
	return err == nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// -- YAML encoding of Timing --

type timingDoc struct {
	TapDuration    string `yaml:"tap_duration"`
	SwipeDuration  string `yaml:"swipe_duration"`
	PopupOpenWait  string `yaml:"popup_open_wait"`
	PopupCloseWait string `yaml:"popup_close_wait"`
	TextInputDelay string `yaml:"text_input_delay"`
	PollInterval   string `yaml:"poll_interval"`
	ScrollSettle   string `yaml:"scroll_settle"`
}

// MarshalYAML writes durations in their human readable form ("250ms").
func (t Timing) MarshalYAML() (interface{}, error) {
	return timingDoc{
		TapDuration:    t.TapDuration.String(),
		SwipeDuration:  t.SwipeDuration.String(),
		PopupOpenWait:  t.PopupOpenWait.String(),
		PopupCloseWait: t.PopupCloseWait.String(),
		TextInputDelay: t.TextInputDelay.String(),
		PollInterval:   t.PollInterval.String(),
		ScrollSettle:   t.ScrollSettle.String(),
	}, nil
}

// UnmarshalYAML parses duration strings. Keys that are absent keep their current value.
func (t *Timing) UnmarshalYAML(node *yaml.Node) error {
	var doc timingDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}
	fields := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{doc.TapDuration, "tap_duration", &t.TapDuration},
		{doc.SwipeDuration, "swipe_duration", &t.SwipeDuration},
		{doc.PopupOpenWait, "popup_open_wait", &t.PopupOpenWait},
		{doc.PopupCloseWait, "popup_close_wait", &t.PopupCloseWait},
		{doc.TextInputDelay, "text_input_delay", &t.TextInputDelay},
		{doc.PollInterval, "poll_interval", &t.PollInterval},
		{doc.ScrollSettle, "scroll_settle", &t.ScrollSettle},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("timing.%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

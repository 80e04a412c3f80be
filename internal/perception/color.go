// File: internal/perception/color.go
// Package perception turns raw frames and OCR output into the values the controller
// decides on: highlight classification, ordered prices and page signatures.
package perception

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/xkilldash9x/bidrunner/api/schemas"
)

const (
	gridColumns = 10
	gridRows    = 5

	// MatchThreshold is the matched/sampled ratio at which a region counts as highlighted.
	MatchThreshold = 0.6
	// darkChannelLimit marks the default row background: every channel below it matches.
	darkChannelLimit = 20
	quantStep        = 32
)

// ErrEmptyRegion is returned when the requested region does not overlap the image.
var ErrEmptyRegion = errors.New("region does not overlap the image")

// ParseHexColor parses "#RRGGBB" (the leading '#' is optional) into an opaque color.
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// ClassifyRegion samples a 10x5 grid inside rect and reports how much of it matches
// targetHex within tolerance on every channel. Near-black pixels always match.
func ClassifyRegion(img image.Image, rect image.Rectangle, targetHex string, tolerance int) (schemas.ColorClassification, error) {
	target, err := ParseHexColor(targetHex)
	if err != nil {
		return schemas.ColorClassification{}, err
	}
	if img == nil {
		return schemas.ColorClassification{}, ErrEmptyRegion
	}
	region := rect.Canon().Intersect(img.Bounds())
	if region.Empty() {
		return schemas.ColorClassification{}, fmt.Errorf("%w: %v outside %v", ErrEmptyRegion, rect, img.Bounds())
	}

	strideX := max(1, region.Dx()/gridColumns)
	strideY := max(1, region.Dy()/gridRows)

	result := schemas.ColorClassification{SampledRegion: region}
	histogram := make(map[color.RGBA]int)

	for row := 0; row < gridRows; row++ {
		y := region.Min.Y + row*strideY
		if y >= region.Max.Y {
			break
		}
		for col := 0; col < gridColumns; col++ {
			x := region.Min.X + col*strideX
			if x >= region.Max.X {
				break
			}
			c := toRGBA(img.At(x, y))
			result.Sampled++
			if matches(c, target, tolerance) {
				result.Matched++
			}
			histogram[quantize(c)]++
		}
	}

	result.Confidence = float64(result.Matched) / float64(result.Sampled)
	result.IsMatch = result.Confidence >= MatchThreshold
	result.DominantColor = dominant(histogram)
	return result, nil
}

func toRGBA(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}

func matches(c, target color.RGBA, tolerance int) bool {
	if c.R < darkChannelLimit && c.G < darkChannelLimit && c.B < darkChannelLimit {
		return true
	}
	return within(c.R, target.R, tolerance) && within(c.G, target.G, tolerance) && within(c.B, target.B, tolerance)
}

func within(a, b uint8, tolerance int) bool {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

func quantize(c color.RGBA) color.RGBA {
	q := func(v uint8) uint8 { return v / quantStep * quantStep }
	return color.RGBA{R: q(c.R), G: q(c.G), B: q(c.B), A: 0xff}
}

// dominant picks the most frequent bucket; ties go to the numerically smallest color
// so the result does not depend on map order.
func dominant(histogram map[color.RGBA]int) color.RGBA {
	var best color.RGBA
	bestCount := -1
	for c, n := range histogram {
		if n > bestCount || (n == bestCount && packRGB(c) < packRGB(best)) {
			best, bestCount = c, n
		}
	}
	return best
}

func packRGB(c color.RGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

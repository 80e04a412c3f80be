// File: internal/perception/signature.go
package perception

import (
	"image"
	"image/draw"
	"sort"
	"strings"

	"github.com/xkilldash9x/bidrunner/api/schemas"
	"github.com/xkilldash9x/bidrunner/internal/similarity"
)

// BuildPageSignature orders lines top to bottom, then left to right, and signs the
// resulting text. Blank lines are ignored.
func BuildPageSignature(lines []schemas.OCRLine) schemas.PageSignature {
	ordered := make([]schemas.OCRLine, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l.Text) != "" {
			ordered = append(ordered, l)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Box.Min, ordered[j].Box.Min
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	texts := make([]string, len(ordered))
	for i, l := range ordered {
		texts[i] = strings.TrimSpace(l.Text)
	}
	return similarity.NewSignature(strings.Join(texts, "\n"))
}

// Crop returns the part of img inside rect with bounds rebased to the origin.
// The pixels are copied, so the result stays valid if img is reused by the capturer.
func Crop(img image.Image, rect image.Rectangle) (*image.RGBA, error) {
	region := rect.Canon().Intersect(img.Bounds())
	if region.Empty() {
		return nil, ErrEmptyRegion
	}
	out := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Draw(out, out.Bounds(), img, region.Min, draw.Src)
	return out, nil
}

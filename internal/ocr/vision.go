// File: internal/ocr/vision.go
package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bidrunner/api/schemas"
	"github.com/xkilldash9x/bidrunner/internal/config"
)

// detectFunc runs document text detection on an encoded image.
type detectFunc func(ctx context.Context, img *visionpb.Image, ictx *visionpb.ImageContext) (*visionpb.TextAnnotation, error)

// VisionRecognizer recognizes text with Google Cloud Vision document text detection.
// Credentials come from the environment (GOOGLE_APPLICATION_CREDENTIALS).
type VisionRecognizer struct {
	detect  detectFunc
	close   func() error
	hints   []string
	timeout time.Duration
	logger  *zap.Logger
}

// NewVisionRecognizer dials the Vision API.
func NewVisionRecognizer(ctx context.Context, cfg config.OCRConfig, logger *zap.Logger) (*VisionRecognizer, error) {
	client, err := vision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	detect := func(ctx context.Context, img *visionpb.Image, ictx *visionpb.ImageContext) (*visionpb.TextAnnotation, error) {
		return client.DetectDocumentText(ctx, img, ictx)
	}
	return newVisionRecognizer(detect, client.Close, cfg, logger), nil
}

func newVisionRecognizer(detect detectFunc, closeFn func() error, cfg config.OCRConfig, logger *zap.Logger) *VisionRecognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisionRecognizer{
		detect:  detect,
		close:   closeFn,
		hints:   cfg.LanguageHints,
		timeout: cfg.Timeout,
		logger:  logger.Named("ocr.vision"),
	}
}

// Recognize sends region of img to Vision and returns one OCRLine per detected
// text line.
func (r *VisionRecognizer) Recognize(ctx context.Context, img image.Image, region image.Rectangle) ([]schemas.OCRLine, error) {
	content, err := encodeRegion(img, region)
	if err != nil {
		return nil, err
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var ictx *visionpb.ImageContext
	if len(r.hints) > 0 {
		ictx = &visionpb.ImageContext{LanguageHints: r.hints}
	}

	start := time.Now()
	annotation, err := r.detect(ctx, &visionpb.Image{Content: content}, ictx)
	if err != nil {
		return nil, fmt.Errorf("vision text detection failed: %w", err)
	}
	lines := annotationLines(annotation, origin(img, region))
	r.logger.Debug("Vision text detection complete.",
		zap.Int("lines", len(lines)),
		zap.Duration("latency", time.Since(start)))
	return lines, nil
}

// Close releases the API connection.
func (r *VisionRecognizer) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// -- Annotation conversion --

// lineBuilder accumulates words until Vision reports a line break.
type lineBuilder struct {
	text       strings.Builder
	box        image.Rectangle
	confidence float64
	words      int
}

func (b *lineBuilder) addWord(w *visionpb.Word, offset image.Point) {
	for _, sym := range w.GetSymbols() {
		b.text.WriteString(sym.GetText())
		switch sym.GetProperty().GetDetectedBreak().GetType() {
		case visionpb.TextAnnotation_DetectedBreak_SPACE, visionpb.TextAnnotation_DetectedBreak_SURE_SPACE:
			b.text.WriteByte(' ')
		}
	}
	box := polyBounds(w.GetBoundingBox()).Add(offset)
	if b.words == 0 {
		b.box = box
	} else {
		b.box = b.box.Union(box)
	}
	b.confidence += float64(w.GetConfidence())
	b.words++
}

func (b *lineBuilder) flush(out []schemas.OCRLine) []schemas.OCRLine {
	if b.words == 0 {
		return out
	}
	text := strings.TrimSpace(b.text.String())
	if text != "" {
		out = append(out, schemas.OCRLine{
			Text:       text,
			Confidence: b.confidence / float64(b.words),
			Box:        b.box,
		})
	}
	*b = lineBuilder{}
	return out
}

// endsLine reports whether the last symbol of w closes a line.
func endsLine(w *visionpb.Word) bool {
	syms := w.GetSymbols()
	if len(syms) == 0 {
		return false
	}
	switch syms[len(syms)-1].GetProperty().GetDetectedBreak().GetType() {
	case visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE, visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
		return true
	}
	return false
}

// annotationLines flattens a document annotation into lines, shifting boxes by offset.
func annotationLines(a *visionpb.TextAnnotation, offset image.Point) []schemas.OCRLine {
	var out []schemas.OCRLine
	for _, page := range a.GetPages() {
		for _, block := range page.GetBlocks() {
			for _, para := range block.GetParagraphs() {
				var b lineBuilder
				for _, word := range para.GetWords() {
					b.addWord(word, offset)
					if endsLine(word) {
						out = b.flush(out)
					}
				}
				out = b.flush(out)
			}
		}
	}
	return out
}

func polyBounds(poly *visionpb.BoundingPoly) image.Rectangle {
	vs := poly.GetVertices()
	if len(vs) == 0 {
		return image.Rectangle{}
	}
	r := image.Rect(int(vs[0].GetX()), int(vs[0].GetY()), int(vs[0].GetX()), int(vs[0].GetY()))
	for _, v := range vs[1:] {
		p := image.Pt(int(v.GetX()), int(v.GetY()))
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	return r
}

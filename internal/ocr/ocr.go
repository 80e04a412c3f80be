// File: internal/ocr/ocr.go
// Package ocr adapts text recognition backends to schemas.TextRecognizer. Every
// backend receives only the cropped region and reports boxes in screen pixels.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bidrunner/api/schemas"
	"github.com/xkilldash9x/bidrunner/internal/config"
	"github.com/xkilldash9x/bidrunner/internal/perception"
)

// Recognizer is a TextRecognizer holding a backend connection.
type Recognizer interface {
	schemas.TextRecognizer
	Close() error
}

// New builds the recognizer selected by cfg.Provider.
func New(ctx context.Context, cfg config.OCRConfig, logger *zap.Logger) (Recognizer, error) {
	switch cfg.Provider {
	case config.OCRProviderVision:
		return NewVisionRecognizer(ctx, cfg, logger)
	case config.OCRProviderCommand:
		return NewCommandRecognizer(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown ocr provider %q", cfg.Provider)
	}
}

// encodeRegion crops region out of img and encodes it as PNG.
func encodeRegion(img image.Image, region image.Rectangle) ([]byte, error) {
	if img == nil {
		return nil, perception.ErrEmptyRegion
	}
	crop, err := perception.Crop(img, region)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, crop); err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}
	return buf.Bytes(), nil
}

// origin is where the cropped region starts on screen. Backends report boxes
// relative to the crop.
func origin(img image.Image, region image.Rectangle) image.Point {
	return region.Canon().Intersect(img.Bounds()).Min
}

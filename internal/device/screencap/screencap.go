// File: internal/device/screencap/screencap.go
// Package screencap captures frames from a local display.
package screencap

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/kbinani/screenshot"
	"go.uber.org/zap"
)

// ErrNoDisplay is returned when the configured display is not attached.
var ErrNoDisplay = errors.New("display not available")

// Allow mocking the platform capture API in tests.
var (
	numActiveDisplays = screenshot.NumActiveDisplays
	getDisplayBounds  = screenshot.GetDisplayBounds
	captureRect       = screenshot.CaptureRect
)

// Capturer implements schemas.ScreenCapturer and schemas.SessionResource for one display.
type Capturer struct {
	display int
	logger  *zap.Logger

	mu     sync.Mutex
	bounds image.Rectangle
}

// New creates a capturer for display index n.
func New(display int, logger *zap.Logger) *Capturer {
	return &Capturer{display: display, logger: logger.Named("screencap")}
}

// Acquire resolves the display bounds for the session.
func (c *Capturer) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := numActiveDisplays()
	if c.display < 0 || c.display >= n {
		return fmt.Errorf("%w: display %d of %d", ErrNoDisplay, c.display, n)
	}
	bounds := getDisplayBounds(c.display)
	if bounds.Empty() {
		return fmt.Errorf("%w: display %d has empty bounds", ErrNoDisplay, c.display)
	}

	c.mu.Lock()
	c.bounds = bounds
	c.mu.Unlock()
	c.logger.Info("Display acquired.", zap.Int("display", c.display), zap.Stringer("bounds", bounds))
	return nil
}

// Release forgets the display bounds.
func (c *Capturer) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bounds = image.Rectangle{}
	return nil
}

// CaptureFrame grabs the whole display. The frame's origin is the display's top-left corner.
func (c *Capturer) CaptureFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	bounds := c.bounds
	c.mu.Unlock()
	if bounds.Empty() {
		bounds = getDisplayBounds(c.display)
	}

	img, err := captureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture display %d: %w", c.display, err)
	}
	if img == nil {
		return nil, fmt.Errorf("failed to capture display %d: empty frame", c.display)
	}
	if !img.Rect.Min.Eq(image.Point{}) {
		img.Rect = img.Rect.Sub(img.Rect.Min)
	}
	return img, nil
}

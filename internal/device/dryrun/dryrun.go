// File: internal/device/dryrun/dryrun.go
// Package dryrun is a device that performs no input. Gestures and text are logged and
// acknowledged; frames come from a PNG fixture or a blank screen.
package dryrun

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Device implements every device interface the controller uses.
type Device struct {
	logger *zap.Logger
	frame  image.Image

	mu       sync.Mutex
	field    string
	gestures int
	acquired bool
}

// New creates a dry-run device. With an empty fixturePath the frame is a white
// screen of size.
func New(fixturePath string, size image.Point, logger *zap.Logger) (*Device, error) {
	d := &Device{logger: logger.Named("dryrun")}
	if fixturePath == "" {
		blank := image.NewRGBA(image.Rectangle{Max: size})
		draw.Draw(blank, blank.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		d.frame = blank
		return d, nil
	}

	f, err := os.Open(fixturePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame fixture: %w", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame fixture %s: %w", fixturePath, err)
	}
	d.frame = img
	return d, nil
}

// Acquire marks the device busy.
func (d *Device) Acquire(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquired = true
	d.logger.Info("Dry-run device acquired; no input will be sent.")
	return nil
}

// Release logs the number of gestures the session would have sent.
func (d *Device) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquired = false
	d.logger.Info("Dry-run device released.", zap.Int("gestures", d.gestures))
	return nil
}

func (d *Device) gesture(msg string, fields ...zap.Field) bool {
	d.mu.Lock()
	d.gestures++
	d.mu.Unlock()
	d.logger.Info(msg, fields...)
	return true
}

// Tap logs a tap.
func (d *Device) Tap(_ context.Context, x, y int, duration time.Duration) bool {
	return d.gesture("tap", zap.Int("x", x), zap.Int("y", y), zap.Duration("duration", duration))
}

// Swipe logs a straight swipe.
func (d *Device) Swipe(_ context.Context, x0, y0, x1, y1 int, duration time.Duration) bool {
	return d.gesture("swipe",
		zap.Stringer("from", image.Pt(x0, y0)), zap.Stringer("to", image.Pt(x1, y1)), zap.Duration("duration", duration))
}

// SwipePath logs a path swipe.
func (d *Device) SwipePath(_ context.Context, points []image.Point, duration time.Duration) bool {
	if len(points) < 2 {
		return false
	}
	return d.gesture("swipe path",
		zap.Stringer("from", points[0]), zap.Stringer("to", points[len(points)-1]),
		zap.Int("points", len(points)), zap.Duration("duration", duration))
}

// ClearField empties the simulated field.
func (d *Device) ClearField(context.Context) {
	d.mu.Lock()
	d.field = ""
	d.mu.Unlock()
	d.logger.Debug("clear field")
}

// SetFieldText appends text to the simulated field.
func (d *Device) SetFieldText(_ context.Context, text string) bool {
	d.mu.Lock()
	d.field += text
	d.mu.Unlock()
	d.logger.Info("type", zap.String("text", text))
	return true
}

// Field returns the simulated field content.
func (d *Device) Field() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.field
}

// CaptureFrame returns the fixture frame.
func (d *Device) CaptureFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.frame, nil
}

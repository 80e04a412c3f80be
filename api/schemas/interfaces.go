package schemas

import (
	"context"
	"image"
	"time"
)

// -- Device Interfaces --

// GestureDispatcher issues synthetic touch gestures. Both calls block until the
// platform confirms completion or the dispatcher's own timeout elapses. They report
// failure by returning false, never by panicking.
type GestureDispatcher interface {
	Tap(ctx context.Context, x, y int, duration time.Duration) bool
	Swipe(ctx context.Context, x0, y0, x1, y1 int, duration time.Duration) bool
}

// PathDispatcher is implemented by dispatchers that can follow an arbitrary polyline.
// The controller prefers it for swipes when path randomization is enabled.
type PathDispatcher interface {
	SwipePath(ctx context.Context, points []image.Point, duration time.Duration) bool
}

// TextInjector operates on whatever field currently holds input focus.
type TextInjector interface {
	ClearField(ctx context.Context)
	SetFieldText(ctx context.Context, text string) bool
}

// ScreenCapturer grabs the current frame. An error (or a nil image) is a transient
// capture failure; callers skip the row instead of aborting.
type ScreenCapturer interface {
	CaptureFrame(ctx context.Context) (image.Image, error)
}

// TextRecognizer runs OCR over a region of a frame. An empty result is valid.
type TextRecognizer interface {
	Recognize(ctx context.Context, img image.Image, region image.Rectangle) ([]OCRLine, error)
}

// SessionResource is implemented by collaborators that hold an exclusive handle
// (serial port, display) for the duration of a session.
type SessionResource interface {
	Acquire(ctx context.Context) error
	Release() error
}

// -- Statistics Interface --

// StatsSink receives fire-and-forget session outcomes. Implementations must not block.
// A price of zero means no price is associated with the outcome.
type StatsSink interface {
	RecordSuccess(kind string, price int64)
	RecordFailure(kind string)
	RecordCycle()
	UpdateState(name string)
}

// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"image"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/bidrunner/api/schemas"
)

// -- Device Mocks --

// MockGestureDispatcher mocks schemas.GestureDispatcher.
type MockGestureDispatcher struct {
	mock.Mock
}

func (m *MockGestureDispatcher) Tap(ctx context.Context, x, y int, duration time.Duration) bool {
	args := m.Called(ctx, x, y, duration)
	return args.Bool(0)
}

func (m *MockGestureDispatcher) Swipe(ctx context.Context, x0, y0, x1, y1 int, duration time.Duration) bool {
	args := m.Called(ctx, x0, y0, x1, y1, duration)
	return args.Bool(0)
}

// MockTextInjector mocks schemas.TextInjector.
type MockTextInjector struct {
	mock.Mock
}

func (m *MockTextInjector) ClearField(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockTextInjector) SetFieldText(ctx context.Context, text string) bool {
	args := m.Called(ctx, text)
	return args.Bool(0)
}

// MockScreenCapturer mocks schemas.ScreenCapturer.
type MockScreenCapturer struct {
	mock.Mock
}

func (m *MockScreenCapturer) CaptureFrame(ctx context.Context) (image.Image, error) {
	args := m.Called(ctx)
	img, _ := args.Get(0).(image.Image)
	return img, args.Error(1)
}

// MockTextRecognizer mocks schemas.TextRecognizer.
type MockTextRecognizer struct {
	mock.Mock
}

func (m *MockTextRecognizer) Recognize(ctx context.Context, img image.Image, region image.Rectangle) ([]schemas.OCRLine, error) {
	args := m.Called(ctx, img, region)
	lines, _ := args.Get(0).([]schemas.OCRLine)
	return lines, args.Error(1)
}

// -- Statistics Mock --

// MockStatsSink mocks schemas.StatsSink. State updates are frequent; tests that do
// not care about them should register UpdateState with Maybe().
type MockStatsSink struct {
	mock.Mock
}

func (m *MockStatsSink) RecordSuccess(kind string, price int64) {
	m.Called(kind, price)
}

func (m *MockStatsSink) RecordFailure(kind string) {
	m.Called(kind)
}

func (m *MockStatsSink) RecordCycle() {
	m.Called()
}

func (m *MockStatsSink) UpdateState(name string) {
	m.Called(name)
}

// Interface guards.
var (
	_ schemas.GestureDispatcher = (*MockGestureDispatcher)(nil)
	_ schemas.TextInjector      = (*MockTextInjector)(nil)
	_ schemas.ScreenCapturer    = (*MockScreenCapturer)(nil)
	_ schemas.TextRecognizer    = (*MockTextRecognizer)(nil)
	_ schemas.StatsSink         = (*MockStatsSink)(nil)
)

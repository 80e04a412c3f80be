// internal/engine/mocks_test.go
package engine

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/bidrunner/api/schemas"
	"github.com/xkilldash9x/bidrunner/internal/calibration"
	"github.com/xkilldash9x/bidrunner/internal/config"
	"github.com/xkilldash9x/bidrunner/internal/mocks"
)

type mockedDeps struct {
	gestures   *mocks.MockGestureDispatcher
	text       *mocks.MockTextInjector
	capturer   *mocks.MockScreenCapturer
	recognizer *mocks.MockTextRecognizer
	stats      *mocks.MockStatsSink
}

func newMockedController(t *testing.T, profile calibration.Profile) (*Controller, *mockedDeps) {
	t.Helper()
	m := &mockedDeps{
		gestures:   new(mocks.MockGestureDispatcher),
		text:       new(mocks.MockTextInjector),
		capturer:   new(mocks.MockScreenCapturer),
		recognizer: new(mocks.MockTextRecognizer),
		stats:      new(mocks.MockStatsSink),
	}
	m.gestures.On("Tap", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true)
	m.stats.On("UpdateState", mock.Anything).Maybe()

	c, err := New(Dependencies{
		Gestures:   m.gestures,
		Text:       m.text,
		Capturer:   m.capturer,
		Recognizer: m.recognizer,
		Stats:      m.stats,
	}, Options{
		Profile:       profile,
		Randomization: config.DefaultRandomizationConfig(),
		Session:       config.SessionConfig{MaxRows: 1},
		Sleeper:       &instantSleeper{},
		Rand:          rand.New(rand.NewSource(11)),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c, m
}

func TestCaptureFailureAbandonsRow(t *testing.T) {
	c, m := newMockedController(t, calibration.Default())
	m.capturer.On("CaptureFrame", mock.Anything).Return(nil, errors.New("display lost")).Once()
	m.stats.On("RecordFailure", schemas.KindCapture).Once()
	m.stats.On("RecordFailure", schemas.KindRowError).Once()
	m.stats.On("RecordCycle").Once()

	require.NoError(t, c.Start(context.Background(), schemas.ModeCreateSweep))
	require.NoError(t, c.Wait())

	m.capturer.AssertExpectations(t)
	m.stats.AssertExpectations(t)
	m.stats.AssertNotCalled(t, "RecordSuccess", mock.Anything, mock.Anything)
	m.recognizer.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything, mock.Anything)
	m.text.AssertNotCalled(t, "SetFieldText", mock.Anything, mock.Anything)
	m.gestures.AssertNumberOfCalls(t, "Tap", 2)
}

func TestRecognizerFailureAbandonsRow(t *testing.T) {
	profile := calibration.Default()
	c, m := newMockedController(t, profile)
	m.capturer.On("CaptureFrame", mock.Anything).Return(white, nil).Once()
	m.recognizer.On("Recognize", mock.Anything, white, profile.ResolveRect(profile.BuyOrdersRegion)).
		Return(nil, errors.New("quota exceeded")).Once()
	m.stats.On("RecordFailure", schemas.KindOCR).Once()
	m.stats.On("RecordFailure", schemas.KindRowError).Once()
	m.stats.On("RecordCycle").Once()

	require.NoError(t, c.Start(context.Background(), schemas.ModeCreateSweep))
	require.NoError(t, c.Wait())

	m.recognizer.AssertExpectations(t)
	m.stats.AssertExpectations(t)
	m.text.AssertNotCalled(t, "SetFieldText", mock.Anything, mock.Anything)
	assert.Empty(t, c.State().ErrorMessage, "a row failure is not a session failure")
}

// internal/engine/session.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bidrunner/api/schemas"
	"github.com/xkilldash9x/bidrunner/internal/calibration"
	"github.com/xkilldash9x/bidrunner/internal/humanoid"
	"github.com/xkilldash9x/bidrunner/internal/perception"
	"github.com/xkilldash9x/bidrunner/internal/similarity"
)

// session is the state of one Start..Stop run. It is owned by the session goroutine.
type session struct {
	c       *Controller
	mode    schemas.OperationMode
	profile calibration.Profile
	h       *humanoid.Humanoid
	stats   schemas.StatsSink
	logger  *zap.Logger

	rowIndex  int
	lastCoord image.Point
	failures  int

	pages  *similarity.PageTracker
	frames *perception.FrameHasher
}

func newSession(c *Controller, mode schemas.OperationMode, profile calibration.Profile, h *humanoid.Humanoid) *session {
	return &session{
		c:       c,
		mode:    mode,
		profile: profile,
		h:       h,
		stats:   c.deps.Stats,
		logger:  c.logger.With(zap.String("mode", string(mode))),
		pages:   similarity.NewPageTracker(0, 0),
		frames:  perception.NewFrameHasher(c.session.FrameHashThreshold),
	}
}

// loop runs rows until the context ends or a stop condition is met. A nil return is
// a normal stop.
func (s *session) loop(ctx context.Context) error {
	policy := s.c.session

	if policy.DetectListEnd {
		// Baseline for the first scroll comparison.
		if err := s.observePage(ctx); err != nil && ctx.Err() != nil {
			return nil
		}
	}

	for {
		if err := s.c.checkpoint(ctx); err != nil {
			return nil
		}

		err := s.runBody(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.failures++
			s.stats.RecordFailure(schemas.KindRowError)
			s.logger.Warn("Row failed.", zap.Int("row", s.rowIndex), zap.Int("consecutive_failures", s.failures), zap.Error(err))
			if policy.MaxConsecutiveFailures > 0 && s.failures >= policy.MaxConsecutiveFailures {
				return fmt.Errorf("%w: %d rows (last: %v)", ErrTooManyFailures, s.failures, err)
			}
		} else {
			s.failures = 0
		}

		s.rowIndex++
		s.stats.RecordCycle()

		if policy.MaxRows > 0 && s.rowIndex >= policy.MaxRows {
			s.logger.Info("Row limit reached.", zap.Int("max_rows", policy.MaxRows))
			return nil
		}

		if s.rowIndex%s.profile.RowsPerScreen == 0 {
			if err := s.scroll(ctx); err != nil {
				if errors.Is(err, errListEnd) {
					return nil
				}
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Warn("Scroll did not complete.", zap.Error(err))
			}
		}

		if err := s.sleep(ctx, s.h.LoopDelay(s.profile.Timing.PollInterval)); err != nil {
			return nil
		}
	}
}

// runBody runs one row. A panic inside the row abandons it like any other row error.
func (s *session) runBody(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Row panicked.", zap.Int("row", s.rowIndex), zap.Any("panic", r), zap.Stack("stack"))
			err = s.abandonRow(ctx, schemas.KindRowPanic, fmt.Errorf("%w: %v", ErrRowPanic, r))
		}
	}()
	return s.body(ctx)
}

func (s *session) body(ctx context.Context) error {
	switch s.mode {
	case schemas.ModeCreateSweep:
		return s.sweepRow(ctx)
	case schemas.ModeEditUpdate:
		return s.editRow(ctx)
	default:
		return fmt.Errorf("no loop body for mode %q", s.mode)
	}
}

// -- Phase plumbing --

// phase emits a state transition and then honours pause and cancellation.
func (s *session) phase(ctx context.Context, p schemas.Phase, coord image.Point) error {
	s.c.emit(schemas.ControlState{
		Phase:          p,
		Mode:           s.mode,
		RowIndex:       s.rowIndex,
		LastCoordinate: coord,
	})
	return s.c.checkpoint(ctx)
}

// abandonRow records a perception or input failure, surfaces it as ErrorRetry and
// closes the popup so the next row starts from the list.
func (s *session) abandonRow(ctx context.Context, kind string, err error) error {
	s.stats.RecordFailure(kind)
	s.c.emit(schemas.ControlState{
		Phase:          schemas.PhaseErrorRetry,
		Mode:           s.mode,
		RowIndex:       s.rowIndex,
		LastCoordinate: s.lastCoord,
		ErrorMessage:   err.Error(),
	})
	if dErr := s.dismiss(ctx); dErr != nil && ctx.Err() != nil {
		return dErr
	}
	return err
}

// dismiss taps the close button and waits for the popup to go away.
func (s *session) dismiss(ctx context.Context) error {
	closeAt := s.profile.Resolve(s.profile.CloseButton)
	if err := s.phase(ctx, schemas.PhaseTap, closeAt); err != nil {
		return err
	}
	s.tap(ctx, closeAt)
	return s.wait(ctx, s.profile.Timing.PopupCloseWait)
}

// -- Gestures and waits --

// tap dispatches a jittered tap. Gestures are detached from cancellation so a Stop
// never interrupts one mid-flight; a rejected gesture is logged and the loop goes on.
func (s *session) tap(ctx context.Context, target image.Point) {
	p := s.h.JitterTap(target)
	s.lastCoord = p
	d := s.h.TapDuration(s.profile.Timing.TapDuration)
	if !s.c.deps.Gestures.Tap(context.WithoutCancel(ctx), p.X, p.Y, d) {
		s.stats.RecordFailure(schemas.KindGestureRejected)
		s.logger.Warn("Tap was not confirmed.", zap.Int("x", p.X), zap.Int("y", p.Y), zap.Duration("duration", d))
	}
}

func (s *session) swipe(ctx context.Context, from, to image.Point) {
	start, end := s.h.JitterSwipe(from, to)
	d := s.h.SwipeDuration(s.profile.Timing.SwipeDuration)
	s.lastCoord = end

	gctx := context.WithoutCancel(ctx)
	var ok bool
	if pd, supportsPaths := s.c.deps.Gestures.(schemas.PathDispatcher); supportsPaths && s.h.Config().PathRandomizationEnabled {
		ok = pd.SwipePath(gctx, s.h.JitterPath(start, end), d)
	} else {
		ok = s.c.deps.Gestures.Swipe(gctx, start.X, start.Y, end.X, end.Y, d)
	}
	if !ok {
		s.stats.RecordFailure(schemas.KindGestureRejected)
		s.logger.Warn("Swipe was not confirmed.",
			zap.Stringer("from", start), zap.Stringer("to", end), zap.Duration("duration", d))
	}
}

// wait sleeps for base plus a randomized inter-action delay.
func (s *session) wait(ctx context.Context, base time.Duration) error {
	return s.sleep(ctx, base+s.h.JitterDelay())
}

func (s *session) sleep(ctx context.Context, d time.Duration) error {
	return s.c.sleeper.Sleep(ctx, d)
}

// -- Perception --

func (s *session) capture(ctx context.Context) (image.Image, error) {
	frame, err := s.c.deps.Capturer.CaptureFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	if frame == nil {
		return nil, fmt.Errorf("%w: empty frame", ErrCaptureFailed)
	}
	return frame, nil
}

// readPrice OCRs region of frame and returns its top price.
func (s *session) readPrice(ctx context.Context, frame image.Image, region calibration.Rect) (schemas.PerceivedPrice, error) {
	rect := s.profile.ResolveRect(region)
	lines, err := s.c.deps.Recognizer.Recognize(ctx, frame, rect)
	if err != nil {
		return schemas.PerceivedPrice{}, fmt.Errorf("%w: recognizer failed on %v: %v", ErrNoPrice, rect, err)
	}
	price, ok := perception.TopPrice(lines, s.profile.OCRConfidenceThreshold)
	if !ok {
		return schemas.PerceivedPrice{}, fmt.Errorf("%w in %v (%d lines)", ErrNoPrice, rect, len(lines))
	}
	return price, nil
}

// -- Price submission --

// submitPrice types price into the popup's price field and confirms it. A rejected
// injection abandons the row rather than confirming whatever the field holds.
func (s *session) submitPrice(ctx context.Context, kind string, price int64) error {
	field := s.profile.Resolve(s.profile.PriceField)
	if err := s.phase(ctx, schemas.PhaseTextInput, field); err != nil {
		return err
	}
	s.tap(ctx, field)
	if err := s.wait(ctx, s.profile.Timing.TextInputDelay); err != nil {
		return err
	}

	text := strconv.FormatInt(price, 10)
	tctx := context.WithoutCancel(ctx)
	s.c.deps.Text.ClearField(tctx)
	if !s.c.deps.Text.SetFieldText(tctx, text) {
		return s.abandonRow(ctx, schemas.KindTextInput, fmt.Errorf("%w: %q", ErrTextInput, text))
	}
	if err := s.wait(ctx, s.profile.Timing.TextInputDelay); err != nil {
		return err
	}

	confirm := s.profile.Resolve(s.profile.ConfirmButton)
	if err := s.phase(ctx, schemas.PhaseConfirmButton, confirm); err != nil {
		return err
	}
	s.tap(ctx, confirm)
	if err := s.wait(ctx, s.profile.Timing.PopupCloseWait); err != nil {
		return err
	}

	s.stats.RecordSuccess(kind, price)
	s.logger.Info("Price submitted.", zap.Int("row", s.rowIndex), zap.String("kind", kind), zap.Int64("price", price))
	return nil
}

// capped reports whether price exceeds the hard cap. A capped row is left as is with
// no further gesture and counts as handled.
func (s *session) capped(price int64) bool {
	if price <= s.profile.HardPriceCap {
		return false
	}
	s.stats.RecordSuccess(schemas.KindPriceCapped, 0)
	s.logger.Info("Price above hard cap; skipping row.",
		zap.Int("row", s.rowIndex), zap.Int64("price", price), zap.Int64("cap", s.profile.HardPriceCap))
	return true
}

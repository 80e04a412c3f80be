// internal/engine/scroll.go
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bidrunner/api/schemas"
	"github.com/xkilldash9x/bidrunner/internal/perception"
)

// scroll brings the next screen of rows into view. With list-end detection on it
// returns errListEnd when the list did not move.
func (s *session) scroll(ctx context.Context) error {
	start := s.profile.Resolve(s.profile.SwipeStart)
	end := s.profile.Resolve(s.profile.SwipeEnd)

	if err := s.phase(ctx, schemas.PhaseScrollNext, start); err != nil {
		return err
	}
	s.swipe(ctx, start, end)
	if err := s.wait(ctx, s.profile.Timing.ScrollSettle); err != nil {
		return err
	}

	if !s.c.session.DetectListEnd {
		return nil
	}
	return s.observePage(ctx)
}

// observePage compares the visible list with the previous observation. Perception
// failures are logged and treated as "page changed" so a flaky capture never ends a
// session early.
func (s *session) observePage(ctx context.Context) error {
	frame, err := s.capture(ctx)
	if err != nil {
		s.stats.RecordFailure(schemas.KindCapture)
		s.logger.Warn("List-end check skipped.", zap.Error(err))
		return nil
	}
	region := s.profile.ResolveRect(s.profile.ListRegion)
	list, err := perception.Crop(frame, region)
	if err != nil {
		s.logger.Warn("List-end check skipped.", zap.Error(err))
		return nil
	}

	unchanged, dist, err := s.frames.Unchanged(list)
	if err != nil {
		s.logger.Debug("Frame hash unavailable.", zap.Error(err))
	} else if unchanged {
		return s.listEnd(zap.Int("hash_distance", dist))
	}

	lines, err := s.c.deps.Recognizer.Recognize(ctx, frame, region)
	if err != nil {
		s.stats.RecordFailure(schemas.KindOCR)
		s.logger.Warn("List-end check skipped.", zap.Error(err))
		return nil
	}
	sig := perception.BuildPageSignature(lines)
	if sig.Text == "" {
		return nil
	}
	res, same := s.pages.Observe(sig)
	if same {
		return s.listEnd(
			zap.Float64("first_line_score", res.FirstLineScore),
			zap.Float64("overall_score", res.OverallScore))
	}
	return nil
}

func (s *session) listEnd(fields ...zap.Field) error {
	s.stats.RecordSuccess(schemas.KindListEnd, 0)
	s.logger.Info("End of list reached.", append(fields, zap.Int("row", s.rowIndex))...)
	return errListEnd
}

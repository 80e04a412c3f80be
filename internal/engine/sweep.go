// internal/engine/sweep.go
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bidrunner/api/schemas"
	"github.com/xkilldash9x/bidrunner/internal/perception"
)

// sweepRow opens the current row, skips it when our own order already leads (the
// buy-orders region shows the highlight color) and otherwise outbids the top order.
func (s *session) sweepRow(ctx context.Context) error {
	anchor := s.profile.RowAnchor(s.rowIndex)
	if err := s.phase(ctx, schemas.PhaseTap, anchor); err != nil {
		return err
	}
	s.tap(ctx, anchor)

	if err := s.phase(ctx, schemas.PhaseWaitPopupOpen, anchor); err != nil {
		return err
	}
	if err := s.wait(ctx, s.profile.Timing.PopupOpenWait); err != nil {
		return err
	}

	if err := s.phase(ctx, schemas.PhaseScanColor, s.lastCoord); err != nil {
		return err
	}
	frame, err := s.capture(ctx)
	if err != nil {
		return s.abandonRow(ctx, schemas.KindCapture, err)
	}
	region := s.profile.ResolveRect(s.profile.BuyOrdersRegion)
	class, err := perception.ClassifyRegion(frame, region, s.profile.HighlightColor, s.profile.ColorTolerance)
	if err != nil {
		return s.abandonRow(ctx, schemas.KindCapture, err)
	}
	if class.IsMatch {
		s.stats.RecordSuccess(schemas.KindHighlighted, 0)
		s.logger.Debug("Row already highlighted; skipping.",
			zap.Int("row", s.rowIndex), zap.Float64("confidence", class.Confidence))
		return s.dismiss(ctx)
	}

	if err := s.phase(ctx, schemas.PhaseScanText, s.lastCoord); err != nil {
		return err
	}
	top, err := s.readPrice(ctx, frame, s.profile.BuyOrdersRegion)
	if err != nil {
		return s.abandonRow(ctx, schemas.KindOCR, err)
	}

	newPrice := top.Value + s.profile.PriceIncrement
	if s.capped(newPrice) {
		return nil
	}

	if s.profile.HasCreateButton() {
		create := s.profile.Resolve(s.profile.CreateButton)
		if err := s.phase(ctx, schemas.PhaseTap, create); err != nil {
			return err
		}
		s.tap(ctx, create)
		if err := s.wait(ctx, s.profile.Timing.PopupOpenWait); err != nil {
			return err
		}
	}

	return s.submitPrice(ctx, schemas.KindCreate, newPrice)
}

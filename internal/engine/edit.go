// internal/engine/edit.go
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bidrunner/api/schemas"
)

// editRow opens the edit popup of an existing order and raises it one unit above the
// market top unless it already leads.
func (s *session) editRow(ctx context.Context) error {
	target := s.profile.EditAnchor(s.rowIndex)
	if err := s.phase(ctx, schemas.PhaseTap, target); err != nil {
		return err
	}
	s.tap(ctx, target)

	if err := s.phase(ctx, schemas.PhaseWaitPopupOpen, target); err != nil {
		return err
	}
	if err := s.wait(ctx, s.profile.Timing.PopupOpenWait); err != nil {
		return err
	}

	if err := s.phase(ctx, schemas.PhaseScanText, s.lastCoord); err != nil {
		return err
	}
	frame, err := s.capture(ctx)
	if err != nil {
		return s.abandonRow(ctx, schemas.KindCapture, err)
	}
	market, err := s.readPrice(ctx, frame, s.profile.MarketPriceRegion)
	if err != nil {
		return s.abandonRow(ctx, schemas.KindOCR, err)
	}
	current, err := s.readPrice(ctx, frame, s.profile.CurrentPriceRegion)
	if err != nil {
		return s.abandonRow(ctx, schemas.KindOCR, err)
	}

	if current.Value >= market.Value {
		s.stats.RecordSuccess(schemas.KindAlreadyBest, current.Value)
		s.logger.Debug("Order already leads the market.",
			zap.Int("row", s.rowIndex), zap.Int64("current", current.Value), zap.Int64("market", market.Value))
		return s.dismiss(ctx)
	}

	newPrice := market.Value + 1
	if s.capped(newPrice) {
		return nil
	}
	return s.submitPrice(ctx, schemas.KindEdit, newPrice)
}

// File: api/schemas/automation.go
package schemas

import (
	"fmt"
	"image"
	"image/color"
	"time"
)

// -- Operation Modes --

// OperationMode selects which loop body the controller runs.
type OperationMode string

const (
	ModeIdle        OperationMode = "idle"
	ModeCreateSweep OperationMode = "create_sweep"
	ModeEditUpdate  OperationMode = "edit_update"
)

// ParseOperationMode accepts the canonical names plus the short CLI aliases.
func ParseOperationMode(s string) (OperationMode, error) {
	switch s {
	case "idle", "":
		return ModeIdle, nil
	case "create_sweep", "create", "sweep":
		return ModeCreateSweep, nil
	case "edit_update", "edit", "update":
		return ModeEditUpdate, nil
	default:
		return ModeIdle, fmt.Errorf("unknown operation mode %q", s)
	}
}

// -- Control State --

// Phase is the step of the control loop currently executing.
type Phase string

const (
	PhaseIdle          Phase = "Idle"
	PhaseTap           Phase = "Tap"
	PhaseWaitPopupOpen Phase = "WaitPopupOpen"
	PhaseScanColor     Phase = "ScanColor"
	PhaseScanText      Phase = "ScanText"
	PhaseTextInput     Phase = "TextInput"
	PhaseConfirmButton Phase = "ConfirmButton"
	PhaseScrollNext    Phase = "ScrollNext"
	PhaseErrorRetry    Phase = "ErrorRetry"
)

// ControlState is emitted after every phase transition.
type ControlState struct {
	Phase          Phase
	Mode           OperationMode
	RowIndex       int
	LastCoordinate image.Point
	// ErrorMessage is only set on ErrorRetry and on the terminal Idle state of a failed session.
	ErrorMessage string
	At           time.Time
}

// -- Perception Results --

// OCRLine is a single recognized line of text. Box is expressed in screen pixels.
type OCRLine struct {
	Text       string
	Confidence float64
	Box        image.Rectangle
}

// PerceivedPrice is a numeric value read off the screen.
type PerceivedPrice struct {
	Value            int64
	Confidence       float64
	VerticalPosition int
}

// ColorClassification is the result of stratified pixel sampling over a region.
type ColorClassification struct {
	IsMatch       bool
	Confidence    float64
	SampledRegion image.Rectangle
	Sampled       int
	Matched       int
	// DominantColor is the most frequent color after quantizing channels to multiples of 32.
	DominantColor color.RGBA
}

// PageSignature is a compact representation of the visible list text.
type PageSignature struct {
	FirstLine   string
	Fingerprint string
	Text        string
}

// -- Statistics --

// Outcome kinds reported to the statistics sink.
const (
	KindCreate          = "create"
	KindEdit            = "edit"
	KindHighlighted     = "skip_highlighted"
	KindAlreadyBest     = "already_best"
	KindCapture         = "capture"
	KindOCR             = "ocr"
	KindPriceCapped     = "skip_price_cap"
	KindTextInput       = "text_input"
	KindRowError        = "row_error"
	KindRowPanic        = "row_panic"
	KindListEnd         = "list_end"
	KindSessionAborted  = "session_aborted"
	KindGestureRejected = "gesture_rejected"
)

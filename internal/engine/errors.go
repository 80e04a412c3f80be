// internal/engine/errors.go
package engine

import "errors"

var (
	// ErrAlreadyRunning is returned by Start while a session is active.
	ErrAlreadyRunning = errors.New("automation session already running")
	// ErrSessionActive is returned when the profile or randomization is changed mid-session.
	ErrSessionActive = errors.New("cannot change configuration while a session is running")
	// ErrTooManyFailures ends a session after session.max_consecutive_failures failed rows.
	ErrTooManyFailures = errors.New("too many consecutive row failures")
	// ErrNoPrice marks a row where OCR produced no usable price.
	ErrNoPrice = errors.New("no price recognized")
	// ErrCaptureFailed marks a row where the screen could not be captured or classified.
	ErrCaptureFailed = errors.New("screen capture failed")
	// ErrTextInput marks a row where the price could not be typed into the field.
	ErrTextInput = errors.New("text injection rejected")
	// ErrRowPanic wraps a panic recovered from a single row body.
	ErrRowPanic = errors.New("row body panicked")
	// ErrSessionPanic wraps a panic recovered from the control goroutine outside a row body.
	ErrSessionPanic = errors.New("automation session panicked")

	// errListEnd ends a session without an error.
	errListEnd = errors.New("list end reached")
)

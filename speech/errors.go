package speech

import (
	"context"
	"errors"
	"fmt"
)

// Common errors for speech playback.
var (
	// Engine errors
	ErrEngineNotAvailable = errors.New("speech engine is not available")
	ErrEngineClosed       = errors.New("speech engine has been closed")
	ErrSynthesisFailed    = errors.New("speech synthesis failed")

	// Driver errors
	ErrNothingToRead   = errors.New("document has no text to read")
	ErrPageOutOfRange  = errors.New("page out of range")
	ErrStateTransition = errors.New("invalid state transition")
)

// IsRecoverableError reports whether playback can continue after err.
func IsRecoverableError(err error) bool {
	if err == nil {
		return true
	}
	switch {
	case errors.Is(err, ErrEngineNotAvailable),
		errors.Is(err, ErrEngineClosed),
		errors.Is(err, ErrNothingToRead):
		return false
	}
	return true
}

// IsCanceled reports whether err comes from a cancelled utterance.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// SpeechError records which component failed and what it was doing.
type SpeechError struct {
	Err       error  // The underlying error
	Component string // Component that generated the error
	Action    string // Action being performed when the error occurred
	Page      int    // Page being read, -1 if unknown
}

// NewSpeechError wraps err with context.
func NewSpeechError(err error, component, action string) *SpeechError {
	return &SpeechError{
		Err:       err,
		Component: component,
		Action:    action,
		Page:      -1,
	}
}

// WithPage records the page being read.
func (e *SpeechError) WithPage(page int) *SpeechError {
	e.Page = page
	return e
}

// Error implements the error interface.
func (e *SpeechError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failed", e.Component, e.Action)
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Action, e.Err)
}

// Unwrap returns the underlying error.
func (e *SpeechError) Unwrap() error {
	return e.Err
}

// IsRecoverable reports whether playback can continue.
func (e *SpeechError) IsRecoverable() bool {
	return IsRecoverableError(e.Err)
}

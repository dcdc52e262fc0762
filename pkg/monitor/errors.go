package monitor

import "errors"

// Error types for monitoring operations
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = iota
	// ErrCodeConfiguration: monitoring cannot start as configured, e.g.
	// zero enrolled references.
	ErrCodeConfiguration
	// ErrCodeCapture: the capture source failed to open or attach.
	ErrCodeCapture
	// ErrCodeExtraction: a per-cycle embedding failure; the cycle is
	// skipped, never fatal.
	ErrCodeExtraction
	// ErrCodePersistence: an enrollment file could not be written or read.
	ErrCodePersistence
)

// CodeOf extracts the ErrorCode from err, or ErrCodeUnknown.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeUnknown
}

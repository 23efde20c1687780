package narrate

import (
	"errors"
	"fmt"
	"time"
)

// Common narration errors
var (
	// Document errors
	ErrExtractionFailed  = errors.New("text extraction failed")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// Backend errors
	ErrBackendUnavailable = errors.New("speech backend unavailable")
	ErrRateLimited        = errors.New("synthesis rate limited")
	ErrSynthesisFailed    = errors.New("speech synthesis failed")
	ErrUnsupportedVoice   = errors.New("unsupported language or voice")

	// Playback errors
	ErrNoChunks        = errors.New("no chunks loaded")
	ErrChunkOutOfRange = errors.New("chunk index out of range")
	ErrInvalidRate     = errors.New("playback rate out of range")
	ErrEngineClosed    = errors.New("engine is closed")
	ErrPlaybackFailed  = errors.New("audio playback failed")

	// Persistence errors
	ErrPersistenceFailed = errors.New("persistence operation failed")
	ErrCheckpointMissing = errors.New("no checkpoint for document")

	// State errors
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrOperationNotAllowed = errors.New("operation not allowed in current state")
)

// IsRecoverable reports whether playback can continue past an error.
func IsRecoverable(err error) bool {
	switch {
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrBackendUnavailable),
		errors.Is(err, ErrPersistenceFailed),
		errors.Is(err, ErrCheckpointMissing):
		return true
	default:
		return false
	}
}

// Severity classifies how an error should be surfaced.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// NarrationError carries component and action context for an error.
type NarrationError struct {
	Err       error
	Component string
	Action    string
	Severity  Severity
	Timestamp int64
	Context   map[string]interface{}
}

// Error implements the error interface
func (e *NarrationError) Error() string {
	return fmt.Sprintf("[%s] %s failed: %v", e.Component, e.Action, e.Err)
}

// Unwrap returns the underlying error
func (e *NarrationError) Unwrap() error {
	return e.Err
}

// IsRecoverable checks if the error is recoverable
func (e *NarrationError) IsRecoverable() bool {
	return IsRecoverable(e.Err)
}

// NewError creates a narration error with context
func NewError(err error, component, action string) *NarrationError {
	return &NarrationError{
		Err:       err,
		Component: component,
		Action:    action,
		Severity:  SeverityError,
		Timestamp: time.Now().Unix(),
		Context:   make(map[string]interface{}),
	}
}

// WithSeverity sets the error severity
func (e *NarrationError) WithSeverity(severity Severity) *NarrationError {
	e.Severity = severity
	return e
}

// WithContext adds context information
func (e *NarrationError) WithContext(key string, value interface{}) *NarrationError {
	e.Context[key] = value
	return e
}

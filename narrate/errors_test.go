package narrate

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestErrorDefinitions tests that all error variables are properly defined.
func TestErrorDefinitions(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		// Document errors
		{"ErrExtractionFailed", ErrExtractionFailed, "text extraction failed"},
		{"ErrDocumentNotFound", ErrDocumentNotFound, "document not found"},
		{"ErrUnsupportedFormat", ErrUnsupportedFormat, "unsupported document format"},

		// Backend errors
		{"ErrBackendUnavailable", ErrBackendUnavailable, "speech backend unavailable"},
		{"ErrRateLimited", ErrRateLimited, "synthesis rate limited"},
		{"ErrSynthesisFailed", ErrSynthesisFailed, "speech synthesis failed"},
		{"ErrUnsupportedVoice", ErrUnsupportedVoice, "unsupported language or voice"},

		// Playback errors
		{"ErrNoChunks", ErrNoChunks, "no chunks loaded"},
		{"ErrChunkOutOfRange", ErrChunkOutOfRange, "chunk index out of range"},
		{"ErrInvalidRate", ErrInvalidRate, "playback rate out of range"},
		{"ErrEngineClosed", ErrEngineClosed, "engine is closed"},
		{"ErrPlaybackFailed", ErrPlaybackFailed, "audio playback failed"},

		// Persistence errors
		{"ErrPersistenceFailed", ErrPersistenceFailed, "persistence operation failed"},
		{"ErrCheckpointMissing", ErrCheckpointMissing, "no checkpoint for document"},

		// State errors
		{"ErrInvalidTransition", ErrInvalidTransition, "invalid state transition"},
		{"ErrOperationNotAllowed", ErrOperationNotAllowed, "operation not allowed in current state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("%s is nil", tt.name)
				return
			}
			if tt.err.Error() != tt.msg {
				t.Errorf("%s message = %q, want %q", tt.name, tt.err.Error(), tt.msg)
			}
		})
	}
}

// TestIsRecoverable tests the IsRecoverable function.
func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		recoverable bool
	}{
		// Recoverable errors
		{"rate limited", ErrRateLimited, true},
		{"backend unavailable", ErrBackendUnavailable, true},
		{"persistence failed", ErrPersistenceFailed, true},
		{"checkpoint missing", ErrCheckpointMissing, true},
		{"wrapped rate limited", fmt.Errorf("chunk 3: %w", ErrRateLimited), true},

		// Non-recoverable errors
		{"synthesis failed", ErrSynthesisFailed, false},
		{"unsupported voice", ErrUnsupportedVoice, false},
		{"engine closed", ErrEngineClosed, false},
		{"extraction failed", ErrExtractionFailed, false},
		{"nil error", nil, false},
		{"unknown error", errors.New("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRecoverable(tt.err)
			if result != tt.recoverable {
				t.Errorf("IsRecoverable(%v) = %v, want %v", tt.err, result, tt.recoverable)
			}
		})
	}
}

// TestNarrationError tests the NarrationError type.
func TestNarrationError(t *testing.T) {
	baseErr := ErrSynthesisFailed
	nErr := NewError(baseErr, "backend", "synthesize")

	want := "[backend] synthesize failed: speech synthesis failed"
	if nErr.Error() != want {
		t.Errorf("NarrationError.Error() = %q, want %q", nErr.Error(), want)
	}

	if nErr.Unwrap() != baseErr {
		t.Error("NarrationError.Unwrap() should return the base error")
	}

	if !errors.Is(nErr, ErrSynthesisFailed) {
		t.Error("errors.Is should see through NarrationError")
	}

	if nErr.IsRecoverable() {
		t.Error("synthesis failure should not be recoverable")
	}

	if nErr.Component != "backend" {
		t.Errorf("Component = %q, want %q", nErr.Component, "backend")
	}
	if nErr.Action != "synthesize" {
		t.Errorf("Action = %q, want %q", nErr.Action, "synthesize")
	}

	if nErr.Severity != SeverityError {
		t.Errorf("Default severity = %v, want %v", nErr.Severity, SeverityError)
	}
}

// TestNarrationErrorRecoverable tests recoverability through wrapping.
func TestNarrationErrorRecoverable(t *testing.T) {
	nErr := NewError(ErrRateLimited, "backend", "synthesize")
	if !nErr.IsRecoverable() {
		t.Error("rate limiting should be recoverable")
	}
}

// TestNarrationErrorWithSeverity tests severity setting.
func TestNarrationErrorWithSeverity(t *testing.T) {
	nErr := NewError(ErrPersistenceFailed, "store", "save")
	nErr.WithSeverity(SeverityWarning)

	if nErr.Severity != SeverityWarning {
		t.Errorf("Severity = %v, want %v", nErr.Severity, SeverityWarning)
	}
}

// TestNarrationErrorWithContext tests context adding.
func TestNarrationErrorWithContext(t *testing.T) {
	nErr := NewError(ErrChunkOutOfRange, "engine", "playChunk")
	nErr.WithContext("chunk", 12).WithContext("total", 5)

	if nErr.Context["chunk"] != 12 {
		t.Errorf("Context[chunk] = %v, want 12", nErr.Context["chunk"])
	}
	if nErr.Context["total"] != 5 {
		t.Errorf("Context[total] = %v, want 5", nErr.Context["total"])
	}
}

// TestErrorWrapping tests that errors can be properly wrapped.
func TestErrorWrapping(t *testing.T) {
	baseErr := ErrSynthesisFailed
	wrappedErr := fmt.Errorf("chunk 2: %w", baseErr)

	errMsg := wrappedErr.Error()
	if !strings.Contains(errMsg, baseErr.Error()) {
		t.Errorf("Wrapped error should contain base error message: %q", errMsg)
	}

	if !errors.Is(wrappedErr, baseErr) {
		t.Error("errors.Is should work with wrapped errors")
	}
}

// TestSeverityValues tests Severity constants.
func TestSeverityValues(t *testing.T) {
	if SeverityInfo != 0 {
		t.Errorf("SeverityInfo = %d, want 0", SeverityInfo)
	}
	if SeverityWarning != 1 {
		t.Errorf("SeverityWarning = %d, want 1", SeverityWarning)
	}
	if SeverityError != 2 {
		t.Errorf("SeverityError = %d, want 2", SeverityError)
	}
	if SeverityCritical != 3 {
		t.Errorf("SeverityCritical = %d, want 3", SeverityCritical)
	}
}

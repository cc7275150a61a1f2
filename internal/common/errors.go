package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
)

// Extraction failures. All of these are fatal to a job and never retried:
// a corrupted or unsupported file does not become valid on retry.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrCorruptedInput    = errors.New("corrupted input")
	ErrEmptyContent      = errors.New("empty content")
)

// Analysis failures.
var (
	// ErrAnalysisUnavailable marks retry-cap exhaustion on transient
	// analysis errors; recorded as the job's last_error.
	ErrAnalysisUnavailable = errors.New("analysis_unavailable")

	// ErrMalformedAnalysis marks a structurally unusable analysis
	// response. Never retried; the matcher falls back to deterministic
	// search and the job continues.
	ErrMalformedAnalysis = errors.New("malformed analysis response")
)

// Polling protocol errors.
var (
	// ErrNotReady is returned by result() while the job is not terminal.
	// Recoverable by the caller: poll again.
	ErrNotReady = errors.New("result not ready")

	// ErrJobNotFound is returned when no job exists for a document id.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobFailed wraps a terminal failure reason when result() is
	// called on a failed job.
	ErrJobFailed = errors.New("job failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsExtractionError reports whether err belongs to the non-retryable
// extraction taxonomy.
func IsExtractionError(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrCorruptedInput) ||
		errors.Is(err, ErrEmptyContent)
}

// ExtractionReason renders the stable reason tag recorded as a failed
// job's last_error.
func ExtractionReason(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrCorruptedInput):
		return "corrupted_input"
	case errors.Is(err, ErrEmptyContent):
		return "empty_content"
	}
	return "extraction_failed"
}

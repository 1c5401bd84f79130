package speech

import "errors"

// Common errors for the synthesis pipeline.
var (
	// Provider errors
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderUnsupported = errors.New("no provider supports the requested language/voice")
	ErrProviderExhausted   = errors.New("all providers in the fallback chain failed")
	ErrVoiceNotFound       = errors.New("requested voice not found")
	ErrQuotaExceeded       = errors.New("provider quota exceeded")
	ErrTextTooLong         = errors.New("text exceeds provider maximum length")

	// Request errors
	ErrEmptyText      = errors.New("text cannot be empty")
	ErrInvalidRequest = errors.New("invalid synthesis request")

	// Cache errors
	ErrCacheCorrupted = errors.New("cache entry corrupted")

	// Service errors
	ErrServiceClosed   = errors.New("speech service has been closed")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrTimeout         = errors.New("operation timed out")
	ErrStateTransition = errors.New("invalid state transition")
)

// IsProviderFailure reports whether an error should advance the fallback
// chain rather than abort the request. Exhaustion and request-shape errors
// are terminal; everything a single provider can cause is retryable against
// the next candidate.
func IsProviderFailure(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrProviderExhausted),
		errors.Is(err, ErrProviderUnsupported),
		errors.Is(err, ErrEmptyText),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrServiceClosed):
		return false
	}
	return true
}

// Severity classifies a pipeline error for logging.
type Severity int

const (
	// SeverityInfo is for informational conditions.
	SeverityInfo Severity = iota
	// SeverityWarning is for degradations that do not fail the request.
	SeverityWarning
	// SeverityError is for failures of a single request.
	SeverityError
	// SeverityCritical is for failures that affect the whole service.
	SeverityCritical
)

// Error carries structured context for a pipeline failure.
type Error struct {
	Err       error
	Component string
	Action    string
	Severity  Severity
	Provider  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		if e.Provider != "" {
			return e.Component + ": " + e.Action + " (" + e.Provider + "): " + e.Err.Error()
		}
		return e.Component + ": " + e.Action + ": " + e.Err.Error()
	}
	return e.Component + ": unknown error"
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a structured pipeline error.
func NewError(err error, component, action string) *Error {
	return &Error{
		Err:       err,
		Component: component,
		Action:    action,
		Severity:  SeverityError,
	}
}

// WithProvider attaches the provider id that caused the error.
func (e *Error) WithProvider(id string) *Error {
	e.Provider = id
	return e
}

// WithSeverity sets the error severity.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

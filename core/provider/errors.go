package provider

import (
	"errors"
	"fmt"
)

// Common errors returned by providers.
var (
	ErrThrottled      = errors.New("provider: request throttled")
	ErrAccessDenied   = errors.New("provider: access denied")
	ErrModelNotFound  = errors.New("provider: model not found")
	ErrModelNotReady  = errors.New("provider: model not ready")
	ErrInvalidRequest = errors.New("provider: invalid request")
	ErrUnavailable    = errors.New("provider: backend unavailable")

	// ErrMalformedContent is returned by CountTokens for content it cannot measure.
	ErrMalformedContent = errors.New("provider: malformed content")
	// ErrMalformedEvent marks a backend stream event that maps to no canonical chunk.
	// Stream normalizers drop such events instead of failing the stream.
	ErrMalformedEvent = errors.New("provider: malformed stream event")
)

// BackendError is a transport or backend failure classified onto one of the sentinels above.
// errors.Is matches both the sentinel (Kind) and anything in the cause chain.
type BackendError struct {
	Backend string // "bedrock", "anthropic", ...
	Kind    error  // one of the sentinel errors; nil when unclassified
	Code    string // backend-native error code or HTTP status
	Message string
	Err     error // underlying SDK error
}

func (e *BackendError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Kind != nil && e.Code != "":
		return fmt.Sprintf("%s: %v (%s): %s", e.Backend, e.Kind, e.Code, msg)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v: %s", e.Backend, e.Kind, msg)
	case e.Code != "":
		return fmt.Sprintf("%s: %s: %s", e.Backend, e.Code, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Backend, msg)
	}
}

func (e *BackendError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsThrottled reports whether err is a rate-limit failure.
// Retry decisions belong to the caller.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

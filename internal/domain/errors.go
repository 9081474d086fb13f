package domain

import (
	"errors"
	"fmt"
)

// ErrAlertNotFound is returned when dismissing or looking up an unknown alert.
var ErrAlertNotFound = errors.New("alert not found")

// ValidationError rejects a request before any fetch is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UpstreamUnavailable records that a data source could not be reached. The
// affected sub-result is replaced with defaults rather than failing the request.
type UpstreamUnavailable struct {
	Source string
	Err    error
}

func (e *UpstreamUnavailable) Error() string {
	return fmt.Sprintf("upstream %s unavailable: %v", e.Source, e.Err)
}

func (e *UpstreamUnavailable) Unwrap() error { return e.Err }

// ComputationError marks a model output that violated its own invariants.
type ComputationError struct {
	Model  string
	Reason string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s model: %s", e.Model, e.Reason)
}

// CacheError is always treated as a miss.
type CacheError struct {
	Key    string
	Reason string
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %q: %s", e.Key, e.Reason)
}

// FetchErrorKind classifies upstream failures.
type FetchErrorKind string

const (
	FetchTimeout     FetchErrorKind = "timeout"
	FetchUpstream4xx FetchErrorKind = "upstream_4xx"
	FetchUpstream5xx FetchErrorKind = "upstream_5xx"
	FetchParseError  FetchErrorKind = "parse_error"
	FetchTransport   FetchErrorKind = "transport"
)

// FetchError is returned by every fetcher.
type FetchError struct {
	Source     string
	Kind       FetchErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s fetch %s (status %d): %s", e.Source, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s fetch %s: %s", e.Source, e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

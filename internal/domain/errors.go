package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingSensorID indicates a reading without a sensor identifier
	ErrMissingSensorID = errors.New("sensor id is required")

	// ErrMissingObservedAt indicates a reading without an observation time
	ErrMissingObservedAt = errors.New("observation time is required")

	// ErrInvalidTemperature indicates a non-finite temperature value
	ErrInvalidTemperature = errors.New("temperature must be a finite number")

	// ErrInvalidHumidity indicates a non-finite humidity value
	ErrInvalidHumidity = errors.New("humidity must be a finite number")

	// ErrMissingField indicates a raw reading lacks a required field
	ErrMissingField = errors.New("required field missing")

	// ErrReadingNotFound indicates requested reading doesn't exist
	ErrReadingNotFound = errors.New("reading not found")

	// ErrDuplicateReading indicates a reading for the same sensor and time is already stored
	ErrDuplicateReading = errors.New("reading already stored")

	// ErrNoSession is matched by a FetchError raised before any network call
	ErrNoSession = errors.New("no session")

	// ErrUnauthorized is matched by a FetchError for a rejected token
	ErrUnauthorized = errors.New("unauthorized")
)

// AuthError reports a failed authorization attempt.
// StatusCode is zero when the request never got a response.
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("auth error: HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("auth error: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// FetchReason classifies a failed sample fetch.
type FetchReason int

const (
	ReasonNoSession FetchReason = iota
	ReasonUnauthorized
	ReasonAPIError
	ReasonNetwork
)

func (r FetchReason) String() string {
	switch r {
	case ReasonNoSession:
		return "no_session"
	case ReasonUnauthorized:
		return "unauthorized"
	case ReasonAPIError:
		return "api_error"
	case ReasonNetwork:
		return "network_error"
	default:
		return "unknown"
	}
}

// FetchError reports a failed sample fetch
type FetchError struct {
	Reason     FetchReason
	StatusCode int // set for ReasonAPIError and ReasonUnauthorized
	Err        error
}

func (e *FetchError) Error() string {
	msg := "fetch error: " + e.Reason.String()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrNoSession and ErrUnauthorized by reason.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrNoSession:
		return e.Reason == ReasonNoSession
	case ErrUnauthorized:
		return e.Reason == ReasonUnauthorized
	}
	return false
}

// ValidationError describes why a single raw reading was skipped
type ValidationError struct {
	SensorID string
	Index    int
	Field    string
	Err      error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error [%s #%d] %s: %v", e.SensorID, e.Index, e.Field, e.Err)
	}
	return fmt.Sprintf("validation error [%s #%d]: %v", e.SensorID, e.Index, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PersistError wraps a storage failure for one reading
type PersistError struct {
	SensorID   string
	ObservedAt time.Time
	Err        error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist error [%s @ %s]: %v", e.SensorID, e.ObservedAt.Format(time.RFC3339), e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

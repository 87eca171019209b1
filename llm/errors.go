package llm

import (
	"errors"
)

// Error types for classifying completion failures. Both carry the
// caller-supplied fallback text so downstream consumers always have
// something to render in place of the missing completion.

// TransportError represents a network or HTTP-level failure reaching
// the text-generation backend.
type TransportError struct {
	err      error
	fallback string
}

func (e *TransportError) Error() string {
	return e.err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.err
}

// NewTransportError wraps an error as a transport failure carrying
// fallback text.
func NewTransportError(err error, fallback string) error {
	return &TransportError{err: err, fallback: fallback}
}

// MalformedResponseError represents a successful HTTP exchange whose
// body was empty or could not be decoded.
type MalformedResponseError struct {
	err      error
	fallback string
}

func (e *MalformedResponseError) Error() string {
	return e.err.Error()
}

func (e *MalformedResponseError) Unwrap() error {
	return e.err
}

// NewMalformedResponseError wraps an error as a malformed-response
// failure carrying fallback text.
func NewMalformedResponseError(err error, fallback string) error {
	return &MalformedResponseError{err: err, fallback: fallback}
}

// IsTransport returns true if the error is a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsMalformed returns true if the error is a malformed-response failure.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}

// FallbackText extracts the fallback payload from a completion error.
// The second return is false for errors outside this package's taxonomy.
func FallbackText(err error) (string, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te.fallback, true
	}
	var me *MalformedResponseError
	if errors.As(err, &me) {
		return me.fallback, true
	}
	return "", false
}

package model

import "errors"

// ErrorKind classifies a pipeline failure for client-facing reporting.
type ErrorKind string

const (
	KindMissingFile           ErrorKind = "MISSING_FILE"
	KindUnsupportedType       ErrorKind = "UNSUPPORTED_TYPE"
	KindTooLarge              ErrorKind = "TOO_LARGE"
	KindDownstreamUnreachable ErrorKind = "DOWNSTREAM_UNREACHABLE"
	KindDownstreamTimeout     ErrorKind = "DOWNSTREAM_TIMEOUT"
	KindDownstreamError       ErrorKind = "DOWNSTREAM_ERROR"
	KindInternal              ErrorKind = "INTERNAL_ERROR"
)

// RelayError is a normalized pipeline failure. Kind drives the HTTP status
// returned to the caller; Details optionally carries the raw downstream
// error body or other diagnostic payload.
type RelayError struct {
	Kind    ErrorKind
	Message string
	// Status is the downstream HTTP status when Kind is KindDownstreamError,
	// zero otherwise.
	Status  int
	Details any
}

func (e *RelayError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// NewRelayError builds a RelayError without details.
func NewRelayError(kind ErrorKind, message string) *RelayError {
	return &RelayError{Kind: kind, Message: message}
}

// AsRelayError unwraps err into a *RelayError if there is one in its chain.
func AsRelayError(err error) (*RelayError, bool) {
	var relErr *RelayError
	if errors.As(err, &relErr) {
		return relErr, true
	}
	return nil, false
}

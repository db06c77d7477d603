package llm

import "errors"

// ErrorKind classifies completion failures.
type ErrorKind string

const (
	KindMissingCredential ErrorKind = "missing_credential"
	KindRequestFailed     ErrorKind = "request_failed"
	KindEmptyContent      ErrorKind = "empty_content"
)

// Sentinels for errors.Is against a *ServiceError.
var (
	ErrMissingCredential = errors.New("no api key configured")
	ErrRequestFailed     = errors.New("chat completion request failed")
	ErrEmptyContent      = errors.New("chat completion returned no content")
)

// ServiceError is returned by Client for every failed call.
type ServiceError struct {
	Kind ErrorKind
	Err  error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return "llm: " + string(e.Kind)
	}
	return "llm: " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is matches the sentinel that corresponds to the error kind.
func (e *ServiceError) Is(target error) bool {
	switch e.Kind {
	case KindMissingCredential:
		return target == ErrMissingCredential
	case KindRequestFailed:
		return target == ErrRequestFailed
	case KindEmptyContent:
		return target == ErrEmptyContent
	}
	return false
}

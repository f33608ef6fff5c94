package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork matches every *NetworkError.
	ErrNetwork = errors.New("network error")
	// ErrDecode matches every *DecodeError.
	ErrDecode = errors.New("response is not valid text")
	// ErrWorkerFault matches every *PanicError.
	ErrWorkerFault = errors.New("worker fault")
)

// NetworkError reports a connection or transport failure while fetching URL.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// DecodeError reports a response body that is not valid UTF-8.
type DecodeError struct {
	URL string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding body of %s: %v", e.URL, ErrDecode)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// ContextError attaches the query or link that triggered Err. It never
// replaces the cause: errors.Is and errors.As see through it.
type ContextError struct {
	Context string
	Err     error
}

func (e *ContextError) Error() string {
	return e.Context + ": " + e.Err.Error()
}

func (e *ContextError) Unwrap() error { return e.Err }

// WithContext wraps err with a context message. A nil err stays nil.
func WithContext(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &ContextError{Context: fmt.Sprintf(format, args...), Err: err}
}

// PanicError is a recovered panic from a background worker.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%v: panic: %v", ErrWorkerFault, e.Value)
}

func (e *PanicError) Is(target error) bool { return target == ErrWorkerFault }

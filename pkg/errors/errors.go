package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies failures raised while harvesting
type ErrorType string

const (
	ErrorTypeFetch             ErrorType = "fetch_failure"
	ErrorTypeDimensionMismatch ErrorType = "dimension_mismatch"
	ErrorTypeDecode            ErrorType = "decode_failure"
	ErrorTypeMalformedInput    ErrorType = "malformed_input"
	ErrorTypeIO                ErrorType = "io_failure"
)

// Error carries the failure kind, the subject it concerns (URL, identifier
// or path) and the underlying cause
type Error struct {
	Type    ErrorType
	Subject string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Subject != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Subject)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FetchFailure reports a request that failed after all attempts
func FetchFailure(url string, err error) *Error {
	return &Error{Type: ErrorTypeFetch, Subject: url, Message: "request failed", Err: err}
}

// DimensionMismatch reports decoded image dimensions that disagree with the
// declared metadata
func DimensionMismatch(id string, axis string, expected, got int) *Error {
	return &Error{
		Type:    ErrorTypeDimensionMismatch,
		Subject: id,
		Message: fmt.Sprintf("unexpected image %s (expected: %d, got: %d)", axis, expected, got),
	}
}

// DecodeFailure reports a file the image codec could not read
func DecodeFailure(path string, err error) *Error {
	return &Error{Type: ErrorTypeDecode, Subject: path, Message: "failed to decode image", Err: err}
}

// MalformedInput reports a record that does not match the expected shape
func MalformedInput(subject, message string) *Error {
	return &Error{Type: ErrorTypeMalformedInput, Subject: subject, Message: message}
}

// IOFailure reports a failed filesystem operation
func IOFailure(path, message string, err error) *Error {
	return &Error{Type: ErrorTypeIO, Subject: path, Message: message, Err: err}
}

// IsType reports whether any error in err's chain is an *Error of the given type
func IsType(err error, t ErrorType) bool {
	var e *Error
	for err != nil {
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Err
	}
	return false
}

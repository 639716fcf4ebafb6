// Package domainerrors carries a machine-readable code alongside an error so
// transport layers can map failures without inspecting messages.
//
// Services return these errors; handlers translate the code to a status via
// pkg/platform/httputil. Stores should return pkg/platform/sentinel errors and
// let services pick the code.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, client-visible error identifier.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidRequest     Code = "invalid_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"

	// CodeStateRejected covers requests that are well-formed but cannot be
	// satisfied by current ledger state (insufficient supply or balance).
	CodeStateRejected Code = "state_rejected"

	// CodeProtocolRejected covers transfer protocol failures the caller must
	// correct and resubmit (bad fee, stale timestamp, unknown token).
	CodeProtocolRejected Code = "protocol_rejected"

	// CodeProviderFailed is surfaced only after every fallback is exhausted.
	CodeProviderFailed Code = "provider_failed"

	CodeUnavailable Code = "unavailable"
	CodeTimeout     Code = "timeout"
	CodeInternal    Code = "internal_error"
)

// Error is a coded domain error. Err is optional and kept for errors.Is/As.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code, and the same message when the
// target sets one. This lets callers compare against a freshly built error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// New creates a coded error without an underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether the outermost domain error in err's chain has code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost domain error, or CodeInternal when
// err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

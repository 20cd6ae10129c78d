// Package domainerrors defines the coded error type shared by the service
// layer and the HTTP transport. Services attach a Code describing the kind of
// rejection; the transport maps codes to HTTP statuses and safe messages.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a rejection. String values are wire-stable: they appear in
// the error envelope and in metrics labels.
type Code string

const (
	CodeBadRequest             Code = "bad_request"
	CodeUnauthorized           Code = "unauthorized"
	CodeNotFound               Code = "not_found"
	CodeConflict               Code = "conflict"
	CodeInvalidTransition      Code = "invalid_transition"
	CodePreconditionNotMet     Code = "precondition_not_met"
	CodeComplianceRejected     Code = "compliance_rejected"
	CodeCapExceeded            Code = "cap_exceeded"
	CodeNonMonotonicBoundaries Code = "non_monotonic_boundaries"
	CodePeriodAlreadyReported  Code = "period_already_reported"
	CodeStaleOracle            Code = "stale_oracle"
	CodeArithmeticBounds       Code = "arithmetic_bounds"
	CodeInternal               Code = "internal_error"
)

// Error is a coded domain error. Message is user-visible for every code
// except CodeInternal.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a coded error with a user-visible message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf is New with formatting.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, keeping the cause
// reachable through errors.Is/As.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// As unwraps err to the coded error, if any.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the code carried by err, or CodeInternal for plain errors.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its response status. Unknown codes are treated
// as internal.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeComplianceRejected, CodeStaleOracle:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidTransition, CodePreconditionNotMet,
		CodeNonMonotonicBoundaries, CodePeriodAlreadyReported:
		return http.StatusConflict
	case CodeCapExceeded, CodeArithmeticBounds:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

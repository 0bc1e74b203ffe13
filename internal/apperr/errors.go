// Package apperr defines the typed errors shared by the engine and the
// service layers, each carrying a stable machine-readable code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidInput      Code = "invalid_input"
	CodeUnknownProfile    Code = "unknown_profile"
	CodeUnknownFeature    Code = "unknown_feature"
	CodeAmbiguousInput    Code = "ambiguous_input"
	CodeInternalInvariant Code = "internal_invariant_violation"
	CodeQuotaExceeded     Code = "quota_exceeded"
	CodeInvalidTaxonomy   Code = "invalid_taxonomy"
	CodeUnauthorized      Code = "unauthorized"
	CodeNotFound          Code = "not_found"
)

// Error is a coded error. Two Errors match under errors.Is when their
// codes are equal, so the package-level sentinels can be used as targets.
type Error struct {
	Code    Code
	Message string
	Err     error
}

var (
	ErrInvalidInput      = &Error{Code: CodeInvalidInput}
	ErrUnknownProfile    = &Error{Code: CodeUnknownProfile}
	ErrUnknownFeature    = &Error{Code: CodeUnknownFeature}
	ErrAmbiguousInput    = &Error{Code: CodeAmbiguousInput}
	ErrInternalInvariant = &Error{Code: CodeInternalInvariant}
	ErrQuotaExceeded     = &Error{Code: CodeQuotaExceeded}
	ErrInvalidTaxonomy   = &Error{Code: CodeInvalidTaxonomy}
	ErrUnauthorized      = &Error{Code: CodeUnauthorized}
	ErrNotFound          = &Error{Code: CodeNotFound}
)

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternalInvariant for uncoded errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternalInvariant
}

// HTTPStatus maps an error to the status a presentation layer should use.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidInput, CodeUnknownFeature:
		return http.StatusBadRequest
	case CodeUnknownProfile, CodeAmbiguousInput:
		return http.StatusUnprocessableEntity
	case CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Package apperr defines the error taxonomy shared by every linkdb component.
//
// Components return *Error values carrying one of the codes below; the HTTP
// layer maps the code to a status and the message to the response body.
// Raw storage-engine errors never cross a component boundary: they are
// translated into this taxonomy by db.Translate.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	EUnauthorized        = "unauthorized"
	EInvalidCredential   = "invalid credential"
	EInvalidSchema       = "invalid schema"
	ENotFound            = "not found"
	ESchemaConflict      = "schema conflict"
	EConstraintViolation = "constraint violation"
	EStorageUnavailable  = "storage unavailable"
	EInternal            = "internal error"
)

// Error is the error struct of linkdb.
//
// Code targets automated handlers, Msg is safe to show to the tenant,
// Op names the failing operation and Err keeps the cause for operators.
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

// Error implements the error interface by writing out the recursive messages.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		fmt.Fprintf(&b, "<%s>", e.Code)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error with a code and a formatted message.
func New(code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code, message and operation to a cause.
func Wrap(err error, code, op, msg string) *Error {
	return &Error{Code: code, Op: op, Msg: msg, Err: err}
}

// WithOp returns err with the operation set when err is an *Error without one.
func WithOp(err error, op string) error {
	var e *Error
	if errors.As(err, &e) && e.Op == "" {
		cp := *e
		cp.Op = op
		return &cp
	}
	return err
}

// ErrorCode returns the code of the first *Error in err's chain, EInternal
// for any other non-nil error, and "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	for errors.As(err, &e) {
		if e.Code != "" {
			return e.Code
		}
		if e.Err == nil {
			break
		}
		err = e.Err
	}
	return EInternal
}

// ErrorMessage returns the tenant-facing message of err.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		if e.Code != "" && e.Code != EInternal {
			return e.Code
		}
	}
	return "an internal error has occurred"
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// HTTPStatus maps an error code to the HTTP status returned to tenants.
func HTTPStatus(code string) int {
	switch code {
	case EUnauthorized, EInvalidCredential:
		return http.StatusUnauthorized
	case EInvalidSchema:
		return http.StatusBadRequest
	case ENotFound:
		return http.StatusNotFound
	case ESchemaConflict:
		return http.StatusConflict
	case EConstraintViolation:
		return http.StatusUnprocessableEntity
	case EStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Sentinel causes that let callers tell the two not-found cases apart with
// errors.Is while both map to ENotFound.
var (
	ErrTableNotFound = errors.New("table not found")
	ErrRowNotFound   = errors.New("row not found")
)

// Package goerror carries the error taxonomy the HTTP layer renders: a kind,
// a stable code that maps to a status, a user-facing message and optional
// per-field details.
package goerror

import (
	"errors"
	"fmt"
	"net/http"
)

// Type is the broad kind of failure.
type Type int

const (
	TypeServer Type = iota
	TypeBusiness
	TypeValidation
)

func (t Type) String() string {
	switch t {
	case TypeServer:
		return "ERROR_TYPE_SERVER"
	case TypeBusiness:
		return "ERROR_TYPE_BUSINESS"
	case TypeValidation:
		return "ERROR_TYPE_VALIDATION"
	}
	return "ERROR_TYPE_UNKNOWN"
}

// Code is stable across releases; clients may switch on it.
type Code int

const (
	CodeInternal Code = iota
	CodeInvalidFormat
	CodeInvalidInput
	CodeNotFound
	CodeConflict
	CodeTooManyRequest
	CodeUnauthorized
	CodeGone
	CodeBadGateway
	CodeUnavailable // a dependency is missing or not configured
)

var codeTable = [...]struct {
	name   string
	status int
}{
	CodeInternal:       {"ERROR_CODE_INTERNAL", http.StatusInternalServerError},
	CodeInvalidFormat:  {"ERROR_CODE_INVALID_FORMAT", http.StatusBadRequest},
	CodeInvalidInput:   {"ERROR_CODE_INVALID_INPUT", http.StatusUnprocessableEntity},
	CodeNotFound:       {"ERROR_CODE_NOT_FOUND", http.StatusNotFound},
	CodeConflict:       {"ERROR_CODE_CONFLICT", http.StatusConflict},
	CodeTooManyRequest: {"ERROR_CODE_TOO_MANY_REQUESTS", http.StatusTooManyRequests},
	CodeUnauthorized:   {"ERROR_CODE_UNAUTHORIZED", http.StatusUnauthorized},
	CodeGone:           {"ERROR_CODE_GONE", http.StatusGone},
	CodeBadGateway:     {"ERROR_CODE_BAD_GATEWAY", http.StatusBadGateway},
	CodeUnavailable:    {"ERROR_CODE_UNAVAILABLE", http.StatusServiceUnavailable},
}

func (c Code) entry() (string, int) {
	if c < 0 || int(c) >= len(codeTable) {
		c = CodeInternal
	}
	e := codeTable[c]
	return e.name, e.status
}

func (c Code) String() string {
	name, _ := c.entry()
	return name
}

// Status is the HTTP status the code renders as.
func (c Code) Status() int {
	_, status := c.entry()
	return status
}

// Error is the application error. Server errors expose their cause through
// Error() for logs while Msg() stays generic for clients.
type Error struct {
	err     error
	msg     string
	errType Type
	code    Code
	fields  map[string]string
}

type Option func(*Error)

// WithCause keeps err reachable through errors.Is and errors.As.
func WithCause(err error) Option {
	return func(e *Error) { e.err = err }
}

// WithField adds a detail rendered under "error" in the response body.
func WithField(key, value string) Option {
	return func(e *Error) {
		if e.fields == nil {
			e.fields = map[string]string{}
		}
		e.fields[key] = value
	}
}

func (e *Error) Error() string {
	switch {
	case e.errType != TypeServer && e.msg != "":
		return e.msg
	case e.err != nil:
		return e.err.Error()
	case e.errType == TypeValidation:
		return "Validation violation"
	case e.errType == TypeBusiness:
		return "Business rule violated"
	}
	return "Internal error"
}

// String is the verbose form for logs.
func (e *Error) String() string {
	return fmt.Sprintf("%s/%s: %q cause=%v", e.errType, e.code, e.msg, e.err)
}

func (e *Error) Msg() string { return e.msg }
func (e *Error) Type() Type { return e.errType }
func (e *Error) Code() Code { return e.code }
func (e *Error) Fields() map[string]string { return e.fields }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) StatusCode() int { return e.code.Status() }

func newError(err error, msg string, t Type, code Code, opts ...Option) *Error {
	e := &Error{err: err, msg: msg, errType: t, code: code}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewServer wraps an unexpected failure. Clients only see a generic message.
func NewServer(err error, opts ...Option) error {
	return newError(err, "Internal server error", TypeServer, CodeInternal, opts...)
}

func NewBusiness(msg string, code Code, opts ...Option) error {
	return newError(nil, msg, TypeBusiness, code, opts...)
}

// NewInvalidInput wraps a validator error, or builds field messages from kv
// pairs when err is nil. An odd kv count is treated as a malformed request.
func NewInvalidInput(err error, kv ...string) error {
	if err != nil {
		return newError(err, "Validation error", TypeValidation, CodeInvalidInput)
	}
	if len(kv)%2 != 0 {
		return NewInvalidFormat()
	}

	e := newError(nil, "Validation error", TypeValidation, CodeInvalidInput)
	for i := 0; i < len(kv); i += 2 {
		WithField(kv[i], kv[i+1])(e)
	}
	return e
}

// NewInvalidFormat reports a body that could not be decoded. The first msg,
// when given, replaces the default message.
func NewInvalidFormat(msgs ...string) error {
	msg := "Invalid request body"
	if len(msgs) > 0 {
		msg = msgs[0]
	}
	return newError(nil, msg, TypeValidation, CodeInvalidFormat)
}

// CodeOf returns the code of the first *Error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.code
	}
	return CodeInternal
}

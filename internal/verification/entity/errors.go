package entity

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a verification failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation: malformed subject, code or channel. Never reaches a backend.
	KindValidation
	// KindDelivery: the backend failed to dispatch or answered unexpectedly.
	KindDelivery
	// KindNoPendingCode: nothing to redeem for the subject (never sent, consumed or superseded).
	KindNoPendingCode
	// KindMismatch: wrong code; the pending code stays redeemable.
	KindMismatch
	// KindExpired: the pending code outlived its lifetime.
	KindExpired
	// KindConfiguration: the selected backend is unknown or lacks credentials.
	KindConfiguration
	// KindBusy: another backend call is in flight for the session.
	KindBusy
	// KindResendThrottled: the resend cooldown has not elapsed.
	KindResendThrottled
	// KindInvalidStep: the operation is not allowed in the current step.
	KindInvalidStep
	// KindSuperseded: the session moved on while the call was in flight; its result was dropped.
	KindSuperseded
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDelivery:
		return "delivery"
	case KindNoPendingCode:
		return "no_pending_code"
	case KindMismatch:
		return "mismatch"
	case KindExpired:
		return "expired"
	case KindConfiguration:
		return "configuration"
	case KindBusy:
		return "busy"
	case KindResendThrottled:
		return "resend_throttled"
	case KindInvalidStep:
		return "invalid_step"
	case KindSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Error is a classified verification failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	// RetryAfter is set on resend_throttled errors.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil && t.RetryAfter == 0
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrDelivery        = &Error{Kind: KindDelivery}
	ErrNoPendingCode   = &Error{Kind: KindNoPendingCode}
	ErrMismatch        = &Error{Kind: KindMismatch}
	ErrExpired         = &Error{Kind: KindExpired}
	ErrConfiguration   = &Error{Kind: KindConfiguration}
	ErrBusy            = &Error{Kind: KindBusy}
	ErrResendThrottled = &Error{Kind: KindResendThrottled}
	ErrInvalidStep     = &Error{Kind: KindInvalidStep}
	ErrSuperseded      = &Error{Kind: KindSuperseded}
)

// NewError builds a classified error with a user-facing message.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// WrapError builds a classified error carrying the underlying cause.
func WrapError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// NewThrottledError reports that a resend is allowed again after remaining.
func NewThrottledError(remaining time.Duration) *Error {
	secs := int((remaining + time.Second - 1) / time.Second)
	return &Error{
		Kind:       KindResendThrottled,
		Message:    fmt.Sprintf("please wait %d seconds before requesting a new code", secs),
		RetryAfter: remaining,
	}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

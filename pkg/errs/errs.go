package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how a caller is expected to react to it.
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindNotFound   Kind = "NOT_FOUND"
	KindConflict   Kind = "CONFLICT"
	KindPolicy     Kind = "POLICY_VIOLATION"
	KindTransient  Kind = "TRANSIENT_STORE"
	KindInternal   Kind = "INTERNAL"
)

// HTTPStatus returns the status code the HTTP layer uses for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPolicy:
		return http.StatusUnprocessableEntity
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a caller may retry an operation that failed with this kind.
// Only transient store failures qualify.
func (k Kind) Retryable() bool {
	return k == KindTransient
}

// Error is the domain error carried across package boundaries.
type Error struct {
	Kind    Kind
	Code    string
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

// Is matches on Code so that a sentinel still compares equal after WithMessage or Wrap.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && e.Code == t.Code
}

// WithMessage returns a copy of e with a more specific human-readable message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func newErr(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrMalformedQR        = newErr(KindValidation, "MALFORMED_QR", "qr payload is malformed")
	ErrInvalidCoordinates = newErr(KindValidation, "INVALID_COORDINATES", "coordinates are not a valid latitude and longitude")
	ErrInvalidAmount      = newErr(KindValidation, "INVALID_AMOUNT", "amount must be greater than zero")

	ErrVendorNotFound      = newErr(KindNotFound, "VENDOR_NOT_FOUND", "vendor not found")
	ErrTokenNotFound       = newErr(KindNotFound, "TOKEN_NOT_FOUND", "qr token not found")
	ErrRelationNotFound    = newErr(KindNotFound, "RELATION_NOT_FOUND", "credit relation not found")
	ErrTransactionNotFound = newErr(KindNotFound, "TRANSACTION_NOT_FOUND", "transaction not found")

	ErrDuplicateRelation    = newErr(KindConflict, "DUPLICATE_RELATION", "credit relation already exists")
	ErrTokenAlreadyUsed     = newErr(KindConflict, "TOKEN_ALREADY_USED", "qr token has already been used")
	ErrTokenAlreadyConsumed = newErr(KindConflict, "TOKEN_ALREADY_CONSUMED", "qr token was already consumed")
	ErrAlreadyPaid          = newErr(KindConflict, "ALREADY_PAID", "transaction is already paid")
	ErrInvalidTransition    = newErr(KindConflict, "INVALID_STATUS_TRANSITION", "status transition is not allowed")
	ErrConcurrentUpdate     = newErr(KindConflict, "CONCURRENT_UPDATE", "record was modified concurrently")

	ErrTokenExpired       = newErr(KindPolicy, "TOKEN_EXPIRED", "qr token has expired")
	ErrNoActiveCreditLine = newErr(KindPolicy, "NO_ACTIVE_CREDIT_LINE", "no active credit line with this vendor")
	ErrTooFar             = newErr(KindPolicy, "TOO_FAR", "customer is too far from the vendor")
	ErrInsufficientCredit = newErr(KindPolicy, "INSUFFICIENT_CREDIT", "insufficient available credit")
	ErrRelationSuspended  = newErr(KindPolicy, "RELATION_SUSPENDED", "credit relation is suspended")
	ErrRelationBlocked    = newErr(KindPolicy, "RELATION_BLOCKED", "credit relation is blocked")
)

// Transient wraps a persistence failure so that callers can tell it apart from policy outcomes.
func Transient(message string, err error) error {
	return &Error{Kind: KindTransient, Code: "STORE_UNAVAILABLE", Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the Code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL_ERROR"
}

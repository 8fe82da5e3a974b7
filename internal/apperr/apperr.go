// Package apperr defines the tagged error values surfaced by the services and
// mapped onto HTTP responses by the handlers.
package apperr

import (
	"errors"
	"net/http"
)

// Kind discriminates application errors.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindBadRequest
	KindDuplicate
	KindInvalidCredentials
	KindMissingToken
	KindMalformedToken
	KindExpiredToken
	KindUnknownSubject
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConfiguration
)

// String returns the symbolic name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindBadRequest:
		return "BadRequestError"
	case KindDuplicate:
		return "DuplicateError"
	case KindInvalidCredentials:
		return "InvalidCredentialsError"
	case KindMissingToken:
		return "MissingTokenError"
	case KindMalformedToken:
		return "MalformedTokenError"
	case KindExpiredToken:
		return "ExpiredTokenError"
	case KindUnknownSubject:
		return "UnknownSubjectError"
	case KindUnauthenticated:
		return "UnauthenticatedError"
	case KindForbidden:
		return "ForbiddenError"
	case KindNotFound:
		return "NotFoundError"
	case KindConfiguration:
		return "ConfigurationError"
	default:
		return "InternalError"
	}
}

// HTTPStatus maps the kind onto a response status code.
// KindConfiguration is never request scoped and maps to 500 only as a fallback.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindBadRequest, KindDuplicate:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindMissingToken, KindMalformedToken,
		KindExpiredToken, KindUnknownSubject, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a tagged application error.
type Error struct {
	Kind    Kind
	Message string
	Details []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind around a cause.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation constructs a validation error with field details.
func Validation(message string, details []FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Package apperr defines the error taxonomy shared by services and the HTTP
// layer. Components return typed errors; the HTTP layer maps them to status
// codes and never resolves them locally.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for status mapping.
type Kind int

const (
	KindValidation Kind = iota // malformed or forbidden input
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindStorage
)

// Access-guard rejection causes. They map to 401 like authentication
// failures but stay distinct so the guard can log which check failed.
var (
	ErrMissingToken    = errors.New("missing bearer token")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrStaleSession    = errors.New("token not registered for user")
	ErrPasswordChanged = errors.New("password changed after token was issued")
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Authentication(msg string) *Error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

func Authorization(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Storage(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Status maps an error to its HTTP status code. Guard rejections and
// authentication failures are both 401; unknown errors are 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrStaleSession),
		errors.Is(err, ErrPasswordChanged):
		return http.StatusUnauthorized
	}

	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the message safe to show to a client. All token-level 401
// causes collapse to one message so a caller cannot probe which check
// failed; storage errors hide their cause entirely.
func Public(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return "you are not logged in, please log in to get access"
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrStaleSession),
		errors.Is(err, ErrPasswordChanged):
		return "your session is no longer valid, please log in again"
	}

	var e *Error
	if errors.As(err, &e) && e.Kind != KindStorage {
		return e.Message
	}
	return "something went wrong"
}

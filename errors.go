package authkit

import (
	"errors"
	"fmt"
)

// Error codes returned by the session. CLI frontends map these to exit codes.
// Storage and key errors carry their own sentinels in the store and keys
// packages.
const (
	CodeTransport            = "transport"
	CodeAuthenticationFailed = "authentication_failed"
	CodeParse                = "parse"
	CodeUnsupported          = "unsupported_operation"
)

// ErrUnsupportedOperation is wrapped by errors returned when an operation is
// invoked against an incompatible authentication method, e.g. refresh on a
// method without refresh capability.
var ErrUnsupportedOperation = errors.New("operation not supported by the active authentication method")

// Error is a structured error with a machine-readable code. HTTPStatus is set
// for errors derived from a server response, zero otherwise.
type Error struct {
	Code       string
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.HTTPStatus)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error constructors for common cases.

func errTransport(cause error) *Error {
	return &Error{Code: CodeTransport, Message: "network error", Cause: cause}
}

func errParse(cause error) *Error {
	return &Error{Code: CodeParse, Message: "malformed response body", Cause: cause}
}

func errUnsupported(op string) *Error {
	return &Error{
		Code:    CodeUnsupported,
		Message: fmt.Sprintf("%s is not supported by the active authentication method", op),
		Cause:   ErrUnsupportedOperation,
	}
}

// credentialMessage is the historical user-facing message for login failures
// that look like bad credentials. Other status classes carry accurate
// messages; see AuthError.
const credentialMessage = "Email address or password was incorrect"

// AuthError classifies a non-2xx login or refresh response by status class
// rather than collapsing everything into a credential failure.
func AuthError(status int) *Error {
	var msg string
	switch {
	case status == 429:
		msg = "too many attempts, try again later"
	case status >= 500:
		msg = "authentication service error"
	case status >= 400:
		msg = credentialMessage
	default:
		msg = fmt.Sprintf("unexpected response status %d", status)
	}
	return &Error{Code: CodeAuthenticationFailed, Message: msg, HTTPStatus: status}
}

// IsCredentialFailure reports whether err is a login/refresh rejection in the
// credential class (4xx other than 429), as opposed to rate limiting or a
// server-side failure.
func IsCredentialFailure(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == CodeAuthenticationFailed &&
		e.HTTPStatus >= 400 && e.HTTPStatus < 500 && e.HTTPStatus != 429
}

// AsError converts err to an *Error, wrapping foreign errors under
// CodeTransport if they carry no code of their own.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeTransport, Message: err.Error(), Cause: err}
}

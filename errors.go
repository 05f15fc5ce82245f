package webauth

import (
	"errors"
	"net/http"
)

var (
	// ErrUserNotFound is returned by a UserDirectory when no user owns an email.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned by UserDirectory.Create when the email is
	// already registered. Stores must enforce this at the storage layer.
	ErrEmailTaken = errors.New("email already registered")
)

// ErrorKind tags the outcome of a flow so the HTTP shell can pick a status
// without inspecting messages.
type ErrorKind int

const (
	KindInvalid ErrorKind = iota + 1
	KindNotFound
	KindConflict
	KindUnauthenticated
	KindExternal
	KindSession
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindExternal:
		return "external"
	case KindSession:
		return "session"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Error codes carried in AuthError.Code
const (
	ErrCodeMissingField     = "missing_field"
	ErrCodeCaptchaFailed    = "captcha_failed"
	ErrCodePasswordMismatch = "password_mismatch"
	ErrCodeEmailExists      = "email_exists"
	ErrCodeUserNotFound     = "user_not_found"
	ErrCodeInvalidCreds     = "invalid_credentials"
	ErrCodeNotAuthenticated = "not_authenticated"
	ErrCodeMailFailed       = "mail_failed"
	ErrCodeNoEmail          = "no_email"
	ErrCodeSessionFailed    = "session_failed"
	ErrCodeInternal         = "internal_error"
)

// AuthError is the failure half of every flow's result. A nil *AuthError
// means the flow succeeded.
type AuthError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Field   string
	Err     error
}

func NewAuthError(kind ErrorKind, code, message, field string) *AuthError {
	return &AuthError{Kind: kind, Code: code, Message: message, Field: field}
}

// Wrap attaches the underlying cause.
func (e *AuthError) Wrap(err error) *AuthError {
	e.Err = err
	return e
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// Status maps the error kind onto an HTTP status code.
func (e *AuthError) Status() int {
	switch e.Kind {
	case KindInvalid:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthenticated:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// Public returns the message that is safe to show to the caller. Server side
// failures collapse to a generic message so causes never reach the client.
func (e *AuthError) Public() string {
	if e.Status() >= http.StatusInternalServerError && e.Message == "" {
		return "Internal server error"
	}
	return e.Message
}

func internalError(err error) *AuthError {
	return NewAuthError(KindInternal, ErrCodeInternal, "Something went wrong, please try again", "").Wrap(err)
}

package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidOrExpiredCode = "INVALID_OR_EXPIRED_CODE"
	TextCodePasswordTooShort     = "PASSWORD_TOO_SHORT"
	TextCodeMissingResetFields   = "MISSING_RESET_FIELDS"
	TextCodeInvalidEmail         = "INVALID_EMAIL"
	TextCodeSubjectNotFound      = "SUBJECT_NOT_FOUND"
	TextCodeUnauthenticated      = "UNAUTHENTICATED"
	TextCodeChannelUnavailable   = "SESSION_CHANNEL_UNAVAILABLE"
	TextCodeMismatchedPassword   = "PASSWORD_MISMATCH"
)

// ErrInvalidOrExpiredCode covers unknown, used and expired codes alike so
// callers cannot tell them apart.
var ErrInvalidOrExpiredCode = goerrors.New("invalid or expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidOrExpiredCode).
	WithCode(goerrors.CodeBadRequest)

// ErrPasswordTooShort is returned when a new password fails the length policy.
var ErrPasswordTooShort = goerrors.New("password must be at least 6 characters long", goerrors.CategoryBadInput).
	WithTextCode(TextCodePasswordTooShort).
	WithCode(goerrors.CodeBadRequest)

// ErrMissingResetFields is returned when a verify request lacks a field.
var ErrMissingResetFields = goerrors.New("email, code, and new password are required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingResetFields).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidEmail is returned for a missing or malformed email address.
var ErrInvalidEmail = goerrors.New("a valid email is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidEmail).
	WithCode(goerrors.CodeBadRequest)

// ErrSubjectNotFound is returned when the directory has no subject for a key.
var ErrSubjectNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeSubjectNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUnauthenticated is returned when a call needs a live session.
var ErrUnauthenticated = goerrors.New("unauthorized", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrChannelUnavailable wraps failures talking to the session channel.
var ErrChannelUnavailable = goerrors.New("session channel unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeChannelUnavailable)

// ErrMismatchedPassword is returned when a password does not match its hash.
var ErrMismatchedPassword = goerrors.New("password mismatch", goerrors.CategoryAuth).
	WithTextCode(TextCodeMismatchedPassword).
	WithCode(goerrors.CodeUnauthorized)

var textCodeStatus = map[string]int{
	TextCodeInvalidOrExpiredCode: http.StatusBadRequest,
	TextCodePasswordTooShort:     http.StatusBadRequest,
	TextCodeMissingResetFields:   http.StatusBadRequest,
	TextCodeInvalidEmail:         http.StatusBadRequest,
	TextCodeSubjectNotFound:      http.StatusNotFound,
	TextCodeUnauthenticated:      http.StatusUnauthorized,
	TextCodeMismatchedPassword:   http.StatusUnauthorized,
}

// HasTextCode reports whether err is a rich error carrying code.
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// IsInvalidOrExpiredCode checks for ErrInvalidOrExpiredCode
func IsInvalidOrExpiredCode(err error) bool {
	return HasTextCode(err, TextCodeInvalidOrExpiredCode)
}

// IsSubjectNotFound checks for ErrSubjectNotFound
func IsSubjectNotFound(err error) bool {
	return HasTextCode(err, TextCodeSubjectNotFound)
}

// ErrorResponse maps an error to an HTTP status and a client safe message.
// Anything without a known text code is reported as an opaque 500.
func ErrorResponse(err error) (int, string) {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if status, ok := textCodeStatus[richErr.TextCode]; ok {
			return status, richErr.Message
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

func withMetadata(base *goerrors.Error, metadata map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	return clone.WithMetadata(metadata)
}

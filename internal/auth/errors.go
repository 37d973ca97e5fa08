package auth

import (
	"errors"

	"github.com/gitgrove/auth-api/internal/models"
)

// Error is a protocol-level failure carrying an RFC 6749 error code. The
// code travels verbatim to the client; the description is advisory.
type Error struct {
	Code        string
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

// NewError creates a protocol error with the given RFC 6749 code.
func NewError(code, description string) *Error {
	return &Error{Code: code, Description: description}
}

func invalidGrant(description string) *Error {
	return NewError(models.ErrInvalidGrant, description)
}

func invalidClient(description string) *Error {
	return NewError(models.ErrInvalidClient, description)
}

func invalidRequest(description string) *Error {
	return NewError(models.ErrInvalidRequest, description)
}

// ErrorCode extracts the protocol error code from err, or server_error if
// err is not a protocol error (store failures and the like).
func ErrorCode(err error) string {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Code
	}
	return models.ErrServerError
}

// IsCode reports whether err is a protocol error with the given code.
func IsCode(err error, code string) bool {
	var oe *Error
	return errors.As(err, &oe) && oe.Code == code
}

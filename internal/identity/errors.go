package identity

import (
	"errors"
	"fmt"
)

// Error represents an identity-related error
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Error codes for identity operations
const (
	ErrInvalidCredentials = "INVALID_CREDENTIALS"
	ErrSessionNotFound    = "SESSION_NOT_FOUND"
	ErrSessionExpired     = "SESSION_EXPIRED"
	ErrTokenMinting       = "TOKEN_MINTING_FAILED"
	ErrStorage            = "IDENTITY_STORAGE_ERROR"
	ErrConfig             = "IDENTITY_CONFIG_ERROR"
)

// HasCode reports whether err is an identity Error carrying code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// NewInvalidCredentialsError creates an invalid credentials error. The
// message never says which part was wrong.
func NewInvalidCredentialsError() *Error {
	return &Error{
		Code:    ErrInvalidCredentials,
		Message: "username or password incorrect",
	}
}

// NewSessionNotFoundError creates a session not found error
func NewSessionNotFoundError(sessionID string) *Error {
	return &Error{
		Code:    ErrSessionNotFound,
		Message: fmt.Sprintf("session not found: %s", sessionID),
	}
}

// NewSessionExpiredError creates a session expired error
func NewSessionExpiredError(sessionID string) *Error {
	return &Error{
		Code:    ErrSessionExpired,
		Message: fmt.Sprintf("session expired: %s", sessionID),
	}
}

// NewTokenMintingError creates a token minting error
func NewTokenMintingError(cause error) *Error {
	return &Error{
		Code:    ErrTokenMinting,
		Message: "failed to mint token",
		Cause:   cause,
	}
}

// NewStorageError creates an identity storage error
func NewStorageError(operation string, cause error) *Error {
	return &Error{
		Code:    ErrStorage,
		Message: fmt.Sprintf("identity storage error during %s", operation),
		Cause:   cause,
	}
}

// NewConfigError creates an identity configuration error
func NewConfigError(message string) *Error {
	return &Error{
		Code:    ErrConfig,
		Message: message,
	}
}

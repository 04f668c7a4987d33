package authbase

import "errors"

// Sentinel errors returned by the Service and UserStore implementations.
// The HTTP layer maps these to status codes; messages are deliberately
// generic where enumeration is a concern.
var (
	// ErrEmailExists is returned by Register when the email is already taken.
	ErrEmailExists = errors.New("an account with this email already exists")

	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password. The two cases are indistinguishable on purpose.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserNotFound is returned by store lookups that matched nothing.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidResetToken covers wrong, expired, and superseded reset
	// tokens. The cases are indistinguishable on purpose.
	ErrInvalidResetToken = errors.New("invalid or expired password reset token")

	// ErrInvalidToken covers malformed, tampered, and expired session
	// tokens, and tokens whose user no longer exists.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrDeliveryFailed is returned when the reset email could not be sent.
	// The pending reset token has been rolled back by the time the caller
	// sees this error.
	ErrDeliveryFailed = errors.New("failed to send password reset email")
)

// Validation error codes used in AuthError responses.
const (
	ErrCodeMissingField = "missing_field"
	ErrCodeInvalidEmail = "invalid_email"
	ErrCodeWeakPassword = "weak_password"
	ErrCodeEmailExists  = "email_exists"
	ErrCodeInvalidCreds = "invalid_credentials"
	ErrCodeInvalidToken = "invalid_token"
	ErrCodeInvalidReset = "invalid_reset_token"
	ErrCodeSendFailed   = "delivery_failed"
	ErrCodeParseError   = "parse_error"
)

// AuthError is a field-level error surfaced to HTTP clients as JSON.
// Field names the offending input field when known.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
}

func (e *AuthError) Error() string {
	return e.Message
}

// NewAuthError creates an AuthError with the given code, message and field.
func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

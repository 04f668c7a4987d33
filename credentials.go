package authbase

import (
	"fmt"
	"regexp"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Credentials is the parsed input to register and login.
type Credentials struct {
	Name     string
	Email    string
	Password string
}

// ValidateRegistration checks registration input shape before anything
// touches the store. Returns an AuthError naming the offending field.
func ValidateRegistration(creds *Credentials) *AuthError {
	if creds.Name == "" {
		return NewAuthError(ErrCodeMissingField, "Name is required", "name")
	}
	if creds.Email == "" {
		return NewAuthError(ErrCodeMissingField, "Email is required", "email")
	}
	if !emailRegex.MatchString(creds.Email) {
		return NewAuthError(ErrCodeInvalidEmail, "Please include a valid email", "email")
	}
	if err := ValidatePassword(creds.Password); err != nil {
		return err
	}
	return nil
}

// ValidateLogin checks login input shape. Passwords are not length-checked
// here; a short password simply fails verification.
func ValidateLogin(creds *Credentials) *AuthError {
	if creds.Email == "" {
		return NewAuthError(ErrCodeMissingField, "Email is required", "email")
	}
	if !emailRegex.MatchString(creds.Email) {
		return NewAuthError(ErrCodeInvalidEmail, "Please include a valid email", "email")
	}
	if creds.Password == "" {
		return NewAuthError(ErrCodeMissingField, "Password is required", "password")
	}
	return nil
}

// ValidatePassword enforces the minimum password policy.
func ValidatePassword(password string) *AuthError {
	if password == "" {
		return NewAuthError(ErrCodeMissingField, "Password is required", "password")
	}
	if len(password) < MinPasswordLength {
		return NewAuthError(ErrCodeWeakPassword,
			fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength), "password")
	}
	return nil
}

// ValidateEmail checks just an email address (forgot-password input).
func ValidateEmail(email string) *AuthError {
	if email == "" {
		return NewAuthError(ErrCodeMissingField, "Email is required", "email")
	}
	if !emailRegex.MatchString(email) {
		return NewAuthError(ErrCodeInvalidEmail, "Please include a valid email", "email")
	}
	return nil
}

// Package password enforces the account password strength policy.
//
// Validation is ordered: the first failing rule decides the error, so callers
// always surface a single actionable message to the user.
package password

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// specials is the accepted punctuation set. Anything outside it does not count
// as a special character.
const specials = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// Policy violations, one per rule, in evaluation order.
var (
	ErrEmpty     = errors.New("Password cannot be empty")
	ErrTooShort  = errors.New("Password must be at least 8 characters long")
	ErrTooLong   = errors.New("Password must not exceed 128 characters")
	ErrNoUpper   = errors.New("Password must contain at least one uppercase letter")
	ErrNoLower   = errors.New("Password must contain at least one lowercase letter")
	ErrNoDigit   = errors.New("Password must contain at least one digit")
	ErrNoSpecial = errors.New("Password must contain at least one special character")
)

// Validate checks plaintext against the policy and returns the first
// violation, or nil when the password is acceptable.
func Validate(plaintext string) error {
	if plaintext == "" {
		return ErrEmpty
	}

	// The limits are in characters, not bytes; multibyte runes count once.
	length := utf8.RuneCountInString(plaintext)
	if length < 8 {
		return ErrTooShort
	}
	if length > 128 {
		return ErrTooLong
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range plaintext {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(specials, r):
			hasSpecial = true
		}
	}

	switch {
	case !hasUpper:
		return ErrNoUpper
	case !hasLower:
		return ErrNoLower
	case !hasDigit:
		return ErrNoDigit
	case !hasSpecial:
		return ErrNoSpecial
	}

	return nil
}

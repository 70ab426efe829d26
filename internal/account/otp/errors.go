package otp

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited is returned when a new code is requested before the
	// cooldown window of the previous one has passed.
	ErrRateLimited = errors.New("a code was requested too recently")

	// ErrNoChallenge is returned when no code was ever issued for the
	// identifier and purpose.
	ErrNoChallenge = errors.New("no verification code found")

	// ErrCodeUsed is returned when the most recent code has already been
	// verified. Verification is terminal; a verified code cannot be replayed.
	ErrCodeUsed = errors.New("verification code already used")

	// ErrTooManyAttempts is returned when the attempt budget is exhausted.
	// The check happens before the code comparison, so a correct code no
	// longer helps once the budget is spent.
	ErrTooManyAttempts = errors.New("maximum verification attempts exceeded")
)

// ExpiredError is returned when the most recent code is past its expiry.
type ExpiredError struct {
	// TTL is the validity window codes are issued with.
	TTL time.Duration
}

// Error implements the error interface.
func (e *ExpiredError) Error() string {
	return fmt.Sprintf("verification code expired, codes are valid for %d minutes", int(e.TTL.Minutes()))
}

// InvalidCodeError is returned when the submitted code does not match.
type InvalidCodeError struct {
	// Remaining is the number of attempts left after this failure.
	Remaining int
}

// Error implements the error interface.
func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid verification code, %d attempts remaining", e.Remaining)
}

// DeliveryError is returned when the code could not be delivered. The
// challenge is rolled back, so the caller can retry immediately.
type DeliveryError struct {
	// Err is the underlying transport failure.
	Err error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver verification code: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

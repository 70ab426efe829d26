// Package entity defines the core domain types for account management.
package entity

import "time"

// Purpose identifies why a verification code was issued. A code issued for one
// purpose can never satisfy a different one.
type Purpose string

const (
	// PurposeEmailVerification verifies the signup email address.
	PurposeEmailVerification Purpose = "EMAIL_VERIFICATION"
	// PurposePhoneVerification verifies a newly registered phone number.
	PurposePhoneVerification Purpose = "PHONE_VERIFICATION"
	// PurposePhoneLogin authorizes a passwordless phone login.
	PurposePhoneLogin Purpose = "PHONE_LOGIN"
	// PurposeForgotPassword authorizes a password reset.
	PurposeForgotPassword Purpose = "FORGOT_PASSWORD"
)

// Channel identifies the delivery transport for a verification code.
type Channel string

const (
	// ChannelEmail delivers codes by email.
	ChannelEmail Channel = "email"
	// ChannelSMS delivers codes by text message.
	ChannelSMS Channel = "sms"
)

// User is a registered account.
//
// Both verification flags must be true before the account can log in. A flag
// drops back to false whenever the corresponding contact point changes.
type User struct {
	ID            uint64
	FirstName     string
	LastName      string
	City          string
	Email         string
	Phone         string
	PasswordHash  string
	EmailVerified bool
	PhoneVerified bool
	AvatarURL     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Verified reports whether the account finished both verifications.
func (u User) Verified() bool {
	return u.EmailVerified && u.PhoneVerified
}

// OtpChallenge is one issued verification code.
//
// Only the hash of the code is stored. Challenges are never reset back to an
// unverified state: a challenge is superseded by issuing a newer one for the
// same identifier and purpose, and only the most recent challenge counts.
type OtpChallenge struct {
	ID         uint64
	Identifier string
	Channel    Channel
	Purpose    Purpose
	CodeHash   string
	Attempts   int
	Verified   bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Event names published to the message broker after state changes.
const (
	EventUserRegistered  = "account.user.registered"
	EventUserVerified    = "account.user.verified"
	EventUserLoggedIn    = "account.user.logged_in"
	EventPasswordChanged = "account.password.changed"
	EventProfileUpdated  = "account.profile.updated"
)

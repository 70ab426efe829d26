package inbound

import "time"

type SignupRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	City            string `json:"city"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type SignupResponse struct{}

func (SignupResponse) Message() string {
	return "Registration successful. We sent verification codes to your email and phone."
}

type VerifyAccountRequest struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	EmailCode string `json:"email_code"`
	PhoneCode string `json:"phone_code"`
}

type VerifyAccountResponse struct{}

func (VerifyAccountResponse) Message() string {
	return "Account verified. You can now log in."
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

type PhoneLoginSendRequest struct {
	Phone string `json:"phone"`
}

type PhoneLoginSendResponse struct{}

func (PhoneLoginSendResponse) Message() string {
	return "We sent a login code to your phone."
}

type PhoneLoginVerifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type PasswordForgotRequest struct {
	Email string `json:"email"`
}

type PasswordForgotResponse struct{}

func (PasswordForgotResponse) Message() string {
	return "If an account with that email exists, we have sent a reset code."
}

type PasswordResetRequest struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type PasswordChangeRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type ProfileUpdateRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	City      string `json:"city"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type UserResponse struct {
	ID            uint64    `json:"id,string"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	City          string    `json:"city"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	EmailVerified bool      `json:"email_verified"`
	PhoneVerified bool      `json:"phone_verified"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

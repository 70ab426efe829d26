package inbound

import (
	"context"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/account/usecase"
	"github.com/otpgate/otpgate/internal/pkg/router"
)

type uc interface {
	Signup(ctx context.Context, in usecase.SignupInput) error
	VerifyAccount(ctx context.Context, in usecase.VerifyAccountInput) error

	Login(ctx context.Context, in usecase.LoginInput) (*usecase.LoginOutput, error)
	PhoneLoginSend(ctx context.Context, in usecase.PhoneLoginSendInput) error
	PhoneLoginVerify(ctx context.Context, in usecase.PhoneLoginVerifyInput) (*usecase.LoginOutput, error)

	PasswordForgot(ctx context.Context, in usecase.PasswordForgotInput) error
	PasswordReset(ctx context.Context, in usecase.PasswordResetInput) error
	PasswordChange(ctx context.Context, in usecase.PasswordChangeInput) error

	Profile(ctx context.Context) (*entity.User, error)
	ProfileUpdate(ctx context.Context, in usecase.ProfileUpdateInput) error
	ProfileUpdateAvatar(ctx context.Context, in usecase.ProfileUpdateAvatarInput) error
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// Registration & Verification
	r.POST("/api/v1/account/signup", end.Signup)
	r.POST("/api/v1/account/verify", end.VerifyAccount)

	// Authentication
	r.POST("/api/v1/account/login", end.Login)
	r.POST("/api/v1/account/login/phone", end.PhoneLoginSend)
	r.POST("/api/v1/account/login/phone/verify", end.PhoneLoginVerify)

	// Password Management
	r.POST("/api/v1/account/password/forgot", end.PasswordForgot)
	r.POST("/api/v1/account/password/reset", end.PasswordReset)
	r.POST("/api/v1/account/password/change", end.PasswordChange) // need authenticated

	// Profile (need authenticated)
	r.GET("/api/v1/account/profile", end.Profile)
	r.PUT("/api/v1/account/profile", end.ProfileUpdate)
	r.PUT("/api/v1/account/profile/avatar", end.ProfileUpdateAvatar)
}

package inbound

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/account/usecase"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/pkg/router"
)

// HTTPEndpoint exposes HTTP handlers for registration, login and profile
// workflows.
type HTTPEndpoint struct {
	uc uc
}

// Signup registers a new account and dispatches verification codes.
func (h *HTTPEndpoint) Signup(r *router.Request) (any, error) {
	var req SignupRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	err := h.uc.Signup(r.Context(), usecase.SignupInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		City:            req.City,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return nil, err
	}

	return SignupResponse{}, nil
}

// VerifyAccount confirms the email and phone codes from signup.
func (h *HTTPEndpoint) VerifyAccount(r *router.Request) (any, error) {
	var req VerifyAccountRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	err := h.uc.VerifyAccount(r.Context(), usecase.VerifyAccountInput{
		Email:     req.Email,
		Phone:     req.Phone,
		EmailCode: req.EmailCode,
		PhoneCode: req.PhoneCode,
	})
	if err != nil {
		return nil, err
	}

	return VerifyAccountResponse{}, nil
}

// Login authenticates with email and password.
func (h *HTTPEndpoint) Login(r *router.Request) (any, error) {
	var req LoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Login(r.Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, err
	}

	return LoginResponse{
		AccessToken: resp.AccessToken,
		User:        toUserResponse(resp.User),
	}, nil
}

// PhoneLoginSend texts a login code to a verified phone.
func (h *HTTPEndpoint) PhoneLoginSend(r *router.Request) (any, error) {
	var req PhoneLoginSendRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.PhoneLoginSend(r.Context(), usecase.PhoneLoginSendInput{Phone: req.Phone}); err != nil {
		return nil, err
	}

	return PhoneLoginSendResponse{}, nil
}

// PhoneLoginVerify exchanges a phone login code for an access token.
func (h *HTTPEndpoint) PhoneLoginVerify(r *router.Request) (any, error) {
	var req PhoneLoginVerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.PhoneLoginVerify(r.Context(), usecase.PhoneLoginVerifyInput{
		Phone: req.Phone,
		Code:  req.Code,
	})
	if err != nil {
		return nil, err
	}

	return LoginResponse{
		AccessToken: resp.AccessToken,
		User:        toUserResponse(resp.User),
	}, nil
}

// PasswordForgot sends a reset code. The answer does not reveal whether the
// email exists.
func (h *HTTPEndpoint) PasswordForgot(r *router.Request) (any, error) {
	var req PasswordForgotRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.PasswordForgot(r.Context(), usecase.PasswordForgotInput{Email: req.Email}); err != nil {
		return nil, err
	}

	return PasswordForgotResponse{}, nil
}

// PasswordReset sets a new password using a reset code.
func (h *HTTPEndpoint) PasswordReset(r *router.Request) (any, error) {
	var req PasswordResetRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	return nil, h.uc.PasswordReset(r.Context(), usecase.PasswordResetInput{
		Email:           req.Email,
		Code:            req.Code,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
}

// PasswordChange replaces the password of the authenticated account.
func (h *HTTPEndpoint) PasswordChange(r *router.Request) (any, error) {
	var req PasswordChangeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	return nil, h.uc.PasswordChange(r.Context(), usecase.PasswordChangeInput{
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
}

// Profile returns the authenticated account.
func (h *HTTPEndpoint) Profile(r *router.Request) (any, error) {
	user, err := h.uc.Profile(r.Context())
	if err != nil {
		return nil, err
	}

	return toUserResponse(*user), nil
}

// ProfileUpdate patches the authenticated account.
func (h *HTTPEndpoint) ProfileUpdate(r *router.Request) (any, error) {
	var req ProfileUpdateRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	return nil, h.uc.ProfileUpdate(r.Context(), usecase.ProfileUpdateInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		City:      req.City,
		Email:     req.Email,
		Phone:     req.Phone,
	})
}

// ProfileUpdateAvatar uploads a new profile picture.
func (h *HTTPEndpoint) ProfileUpdateAvatar(r *router.Request) (any, error) {
	ctx := r.Context()

	file, err := r.StreamSingleFile("avatar")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.ErrorContext(ctx, "failed to close file", "error", err)
		}
	}()

	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, goerror.NewInvalidFormat()
	}

	return nil, h.uc.ProfileUpdateAvatar(ctx, usecase.ProfileUpdateAvatarInput{
		File:        io.MultiReader(bytes.NewReader(head[:n]), file),
		Size:        -1,
		ContentType: http.DetectContentType(head[:n]),
	})
}

func toUserResponse(u entity.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		City:          u.City,
		Email:         u.Email,
		Phone:         u.Phone,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		AvatarURL:     u.AvatarURL,
		CreatedAt:     u.CreatedAt,
	}
}

package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/pkg/password"
)

type PasswordResetInput struct {
	Email           string `validate:"required,email"`
	Code            string `validate:"required,len=6,numeric"`
	NewPassword     string `validate:"required"`
	ConfirmPassword string `validate:"required"`
}

// PasswordReset sets a new password using the code from PasswordForgot.
func (u *Usecase) PasswordReset(ctx context.Context, in PasswordResetInput) error {
	ctx, span := u.startSpan(ctx, "PasswordReset")
	defer span.End()

	if err := u.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	if in.NewPassword != in.ConfirmPassword {
		return goerror.NewBusiness("Password and confirmation do not match", goerror.CodeInvalidInput)
	}

	if err := password.Validate(in.NewPassword); err != nil {
		return goerror.NewBusiness(err.Error(), goerror.CodeInvalidInput)
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := u.otp.Verify(ctx, email, entity.PurposeForgotPassword, in.Code); err != nil {
		return mapOtpError(err)
	}

	user, err := u.users.FindByEmail(ctx, email)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "user account not found after reset code", "email", email)
		return goerror.NewBusiness("Account not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo find user by email", "email", email, "error", err)
		return goerror.NewServer(err)
	}

	newHash, err := u.hash.Hash(in.NewPassword)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash new password", "user_id", user.ID, "error", err)
		return goerror.NewServer(err)
	}

	if err := u.users.UpdatePassword(ctx, user.ID, string(newHash)); err != nil {
		slog.ErrorContext(ctx, "failed to repo update user password", "user_id", user.ID, "error", err)
		return goerror.NewServer(err)
	}

	u.publish(ctx, entity.EventPasswordChanged, map[string]any{
		"user_id": user.ID,
		"reason":  "reset",
	})

	return nil
}

package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
)

type PasswordForgotInput struct {
	Email string `validate:"required,email"`
}

// PasswordForgot mails a reset code to the account. The answer is a generic
// success whether or not the email is registered, so the endpoint leaks
// nothing about which addresses exist.
func (u *Usecase) PasswordForgot(ctx context.Context, in PasswordForgotInput) error {
	ctx, span := u.startSpan(ctx, "PasswordForgot")
	defer span.End()

	if err := u.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	user, err := u.users.FindByEmail(ctx, email)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.InfoContext(ctx, "password forgot for unknown email", "email", email)
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo find user by email", "email", email, "error", err)
		return goerror.NewServer(err)
	}

	if err := u.otp.Issue(ctx, user.Email, entity.ChannelEmail, entity.PurposeForgotPassword); err != nil {
		slog.ErrorContext(ctx, "failed to issue password reset code", "user_id", user.ID, "error", err)
		return mapOtpError(err)
	}

	return nil
}

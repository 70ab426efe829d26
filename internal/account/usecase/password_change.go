package usecase

import (
	"context"
	"log/slog"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/pkg/password"
)

type PasswordChangeInput struct {
	OldPassword string `validate:"required"`
	NewPassword string `validate:"required"`
}

// PasswordChange replaces the password of the authenticated account after
// re-checking the old one.
func (u *Usecase) PasswordChange(ctx context.Context, in PasswordChangeInput) error {
	ctx, span := u.startSpan(ctx, "PasswordChange")
	defer span.End()

	if err := u.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	user, err := u.currentUser(ctx)
	if err != nil {
		return err
	}

	if !u.hash.Verify(user.PasswordHash, in.OldPassword) {
		slog.WarnContext(ctx, "old password mismatch", "user_id", user.ID)
		return goerror.NewBusiness("Old password is incorrect", goerror.CodeUnauthorized)
	}

	if in.NewPassword == in.OldPassword {
		return goerror.NewBusiness("New password must be different from old password", goerror.CodeInvalidInput)
	}

	if err := password.Validate(in.NewPassword); err != nil {
		return goerror.NewBusiness(err.Error(), goerror.CodeInvalidInput)
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
		"reason":  "change",
	})

	return nil
}

package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
)

type ProfileUpdateInput struct {
	FirstName string `validate:"omitempty,alphaspace,max=100"`
	LastName  string `validate:"omitempty,alphaspace,max=100"`
	City      string `validate:"omitempty,alphaspace,max=100"`
	Email     string `validate:"omitempty,email"`
	Phone     string `validate:"omitempty,e164"`
}

// ProfileUpdate patches the authenticated account. Changing a contact point
// drops its verification flag and sends a fresh code to the new address, so
// the account cannot log in again until it is re-verified.
func (u *Usecase) ProfileUpdate(ctx context.Context, in ProfileUpdateInput) error {
	ctx, span := u.startSpan(ctx, "ProfileUpdate")
	defer span.End()

	if err := u.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	user, err := u.currentUser(ctx)
	if err != nil {
		return err
	}

	if v := strings.TrimSpace(in.FirstName); v != "" {
		user.FirstName = v
	}
	if v := strings.TrimSpace(in.LastName); v != "" {
		user.LastName = v
	}
	if v := strings.TrimSpace(in.City); v != "" {
		user.City = v
	}

	var issueEmail, issuePhone bool

	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" && email != user.Email {
		if _, err := u.users.FindByEmail(ctx, email); err == nil {
			return goerror.NewBusiness("Email already in use", goerror.CodeConflict)
		} else if !errors.Is(err, goerror.ErrNotFound) {
			slog.ErrorContext(ctx, "failed to repo find user by email", "email", email, "error", err)
			return goerror.NewServer(err)
		}
		user.Email = email
		user.EmailVerified = false
		issueEmail = true
	}

	if phone := strings.TrimSpace(in.Phone); phone != "" && phone != user.Phone {
		if _, err := u.users.FindByPhone(ctx, phone); err == nil {
			return goerror.NewBusiness("Phone number already in use", goerror.CodeConflict)
		} else if !errors.Is(err, goerror.ErrNotFound) {
			slog.ErrorContext(ctx, "failed to repo find user by phone", "phone", phone, "error", err)
			return goerror.NewServer(err)
		}
		user.Phone = phone
		user.PhoneVerified = false
		issuePhone = true
	}

	if err := u.users.UpdateProfile(ctx, *user); err != nil {
		if errors.Is(err, goerror.ErrConflict) {
			return goerror.NewBusiness("Email already in use", goerror.CodeConflict)
		}
		slog.ErrorContext(ctx, "failed to repo update user profile", "user_id", user.ID, "error", err)
		return goerror.NewServer(err)
	}

	if issueEmail {
		if err := u.otp.Issue(ctx, user.Email, entity.ChannelEmail, entity.PurposeEmailVerification); err != nil {
			slog.ErrorContext(ctx, "failed to issue email verification code", "user_id", user.ID, "error", err)
			return mapOtpError(err)
		}
	}
	if issuePhone {
		if err := u.otp.Issue(ctx, user.Phone, entity.ChannelSMS, entity.PurposePhoneVerification); err != nil {
			slog.ErrorContext(ctx, "failed to issue phone verification code", "user_id", user.ID, "error", err)
			return mapOtpError(err)
		}
	}

	u.publish(ctx, entity.EventProfileUpdated, map[string]any{
		"user_id": user.ID,
	})

	return nil
}

package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
)

type PhoneLoginSendInput struct {
	Phone string `validate:"required,e164"`
}

// PhoneLoginSend starts a passwordless login by texting a one-time code to a
// verified phone number.
func (u *Usecase) PhoneLoginSend(ctx context.Context, in PhoneLoginSendInput) error {
	ctx, span := u.startSpan(ctx, "PhoneLoginSend")
	defer span.End()

	if err := u.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	phone := strings.TrimSpace(in.Phone)
	user, err := u.users.FindByPhone(ctx, phone)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "user account not found", "phone", phone)
		return goerror.NewBusiness("Phone number not registered", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo find user by phone", "phone", phone, "error", err)
		return goerror.NewServer(err)
	}

	if !user.Verified() {
		slog.WarnContext(ctx, "user account not fully verified", "user_id", user.ID)
		return goerror.NewBusiness("Account not verified", goerror.CodeForbidden)
	}

	if err := u.otp.Issue(ctx, user.Phone, entity.ChannelSMS, entity.PurposePhoneLogin); err != nil {
		slog.ErrorContext(ctx, "failed to issue phone login code", "user_id", user.ID, "error", err)
		return mapOtpError(err)
	}

	return nil
}

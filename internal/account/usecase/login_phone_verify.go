package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
)

type PhoneLoginVerifyInput struct {
	Phone string `validate:"required,e164"`
	Code  string `validate:"required,len=6,numeric"`
}

// PhoneLoginVerify completes a passwordless login by checking the one-time
// code and minting an access token.
func (u *Usecase) PhoneLoginVerify(ctx context.Context, in PhoneLoginVerifyInput) (*LoginOutput, error) {
	ctx, span := u.startSpan(ctx, "PhoneLoginVerify")
	defer span.End()

	if err := u.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	phone := strings.TrimSpace(in.Phone)
	if err := u.otp.Verify(ctx, phone, entity.PurposePhoneLogin, in.Code); err != nil {
		return nil, mapOtpError(err)
	}

	user, err := u.users.FindByPhone(ctx, phone)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "user account not found after phone login", "phone", phone)
		return nil, goerror.NewBusiness("Phone number not registered", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo find user by phone", "phone", phone, "error", err)
		return nil, goerror.NewServer(err)
	}

	// The flags could have dropped between send and verify, a contact change
	// in the meantime for example.
	if !user.Verified() {
		slog.WarnContext(ctx, "user account not fully verified", "user_id", user.ID)
		return nil, goerror.NewBusiness("Account not verified", goerror.CodeForbidden)
	}

	token, err := u.jwt.Generate(user.ID, user.Email)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate access jwt token", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	u.publish(ctx, entity.EventUserLoggedIn, map[string]any{
		"user_id": user.ID,
		"method":  "phone_otp",
	})

	return &LoginOutput{AccessToken: token, User: *user}, nil
}

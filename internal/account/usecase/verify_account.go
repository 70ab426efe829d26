package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
)

type VerifyAccountInput struct {
	Email     string `validate:"required,email"`
	Phone     string `validate:"required,e164"`
	EmailCode string `validate:"required,len=6,numeric"`
	PhoneCode string `validate:"required,len=6,numeric"`
}

// VerifyAccount confirms both contact points of a fresh signup in a single
// request. Only when the email code and the phone code both check out are the
// verification flags flipped, together.
func (u *Usecase) VerifyAccount(ctx context.Context, in VerifyAccountInput) error {
	ctx, span := u.startSpan(ctx, "VerifyAccount")
	defer span.End()

	if err := u.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	phone := strings.TrimSpace(in.Phone)

	user, err := u.users.FindByEmail(ctx, email)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "user account not found", "email", email)
		return goerror.NewBusiness("Account not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo find user by email", "email", email, "error", err)
		return goerror.NewServer(err)
	}

	// The phone in the request must be the one on record. A mismatch gets the
	// same generic answer as a wrong code so the endpoint cannot be used to
	// probe which phone belongs to which email.
	if user.Phone != phone {
		slog.WarnContext(ctx, "verification phone mismatch", "user_id", user.ID)
		return goerror.NewBusiness("Verification failed", goerror.CodeInvalidInput)
	}

	if user.Verified() {
		return goerror.NewBusiness("Account already verified", goerror.CodeConflict)
	}

	if err := u.otp.Verify(ctx, email, entity.PurposeEmailVerification, in.EmailCode); err != nil {
		return mapOtpError(err)
	}

	if err := u.otp.Verify(ctx, phone, entity.PurposePhoneVerification, in.PhoneCode); err != nil {
		return mapOtpError(err)
	}

	if err := u.users.MarkVerified(ctx, user.ID); err != nil {
		slog.ErrorContext(ctx, "failed to repo mark user verified", "user_id", user.ID, "error", err)
		return goerror.NewServer(err)
	}

	u.publish(ctx, entity.EventUserVerified, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})

	return nil
}

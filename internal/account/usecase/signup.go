package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/pkg/idempotency"
	"github.com/otpgate/otpgate/internal/pkg/password"
)

type SignupInput struct {
	FirstName       string `validate:"required,alphaspace,max=100"`
	LastName        string `validate:"required,alphaspace,max=100"`
	City            string `validate:"required,alphaspace,max=100"`
	Email           string `validate:"required,email"`
	Phone           string `validate:"required,e164"`
	Password        string `validate:"required"`
	ConfirmPassword string `validate:"required"`
}

// Signup registers a new unverified account and dispatches verification codes
// to both the email address and the phone number.
func (u *Usecase) Signup(ctx context.Context, in SignupInput) error {
	ctx, span := u.startSpan(ctx, "Signup")
	defer span.End()

	if err := u.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	if in.Password != in.ConfirmPassword {
		return goerror.NewBusiness("Password and confirmation do not match", goerror.CodeInvalidInput)
	}

	if err := password.Validate(in.Password); err != nil {
		return goerror.NewBusiness(err.Error(), goerror.CodeInvalidInput)
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)

	key := fmt.Sprintf("account:signup:%s", in.Email)
	err := u.idem.Exec(ctx, key, func(ctx context.Context) error {
		return u.doSignup(ctx, in)
	})
	switch {
	case errors.Is(err, idempotency.ErrAlreadyInProgress):
		return goerror.NewBusiness("Signup is already being processed", goerror.CodeTooManyRequest)
	case errors.Is(err, idempotency.ErrAlreadyCompleted):
		return goerror.NewBusiness("Email already registered", goerror.CodeConflict)
	case errors.Is(err, idempotency.ErrAlreadyFailed):
		return goerror.NewBusiness("Previous signup attempt failed, please try again later", goerror.CodeTooManyRequest)
	}
	return err
}

func (u *Usecase) doSignup(ctx context.Context, in SignupInput) error {
	if _, err := u.users.FindByEmail(ctx, in.Email); err == nil {
		return goerror.NewBusiness("Email already registered", goerror.CodeConflict)
	} else if !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo find user by email", "email", in.Email, "error", err)
		return goerror.NewServer(err)
	}

	if _, err := u.users.FindByPhone(ctx, in.Phone); err == nil {
		return goerror.NewBusiness("Phone number already registered", goerror.CodeConflict)
	} else if !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo find user by phone", "phone", in.Phone, "error", err)
		return goerror.NewServer(err)
	}

	passHash, err := u.hash.Hash(in.Password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password", "error", err)
		return goerror.NewServer(err)
	}

	user := entity.User{
		ID:           u.uid.Generate(),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		City:         strings.TrimSpace(in.City),
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: string(passHash),
	}
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, goerror.ErrConflict) {
			return goerror.NewBusiness("Email already registered", goerror.CodeConflict)
		}
		slog.ErrorContext(ctx, "failed to repo create user", "email", in.Email, "error", err)
		return goerror.NewServer(err)
	}

	if err := u.otp.Issue(ctx, user.Email, entity.ChannelEmail, entity.PurposeEmailVerification); err != nil {
		slog.ErrorContext(ctx, "failed to issue email verification code", "user_id", user.ID, "error", err)
		return mapOtpError(err)
	}

	if err := u.otp.Issue(ctx, user.Phone, entity.ChannelSMS, entity.PurposePhoneVerification); err != nil {
		slog.ErrorContext(ctx, "failed to issue phone verification code", "user_id", user.ID, "error", err)
		return mapOtpError(err)
	}

	u.publish(ctx, entity.EventUserRegistered, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})

	return nil
}

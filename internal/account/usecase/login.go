package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
)

type LoginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type LoginOutput struct {
	AccessToken string
	User        entity.User
}

// Login authenticates with email and password. An unknown email and a wrong
// password produce the exact same answer.
func (u *Usecase) Login(ctx context.Context, in LoginInput) (*LoginOutput, error) {
	ctx, span := u.startSpan(ctx, "Login")
	defer span.End()

	if err := u.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	user, err := u.users.FindByEmail(ctx, email)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "user account not found", "email", email)
		return nil, goerror.NewBusiness("Invalid email or password", goerror.CodeUnauthorized)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo find user by email", "email", email, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !u.hash.Verify(user.PasswordHash, in.Password) {
		slog.WarnContext(ctx, "password user account not match", "user_id", user.ID)
		return nil, goerror.NewBusiness("Invalid email or password", goerror.CodeUnauthorized)
	}

	if !user.Verified() {
		slog.WarnContext(ctx, "user account not fully verified", "user_id", user.ID,
			"email_verified", user.EmailVerified, "phone_verified", user.PhoneVerified)
		return nil, goerror.NewBusiness("Account not verified", goerror.CodeForbidden)
	}

	token, err := u.jwt.Generate(user.ID, user.Email)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate access jwt token", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	u.publish(ctx, entity.EventUserLoggedIn, map[string]any{
		"user_id": user.ID,
		"method":  "password",
	})

	return &LoginOutput{AccessToken: token, User: *user}, nil
}

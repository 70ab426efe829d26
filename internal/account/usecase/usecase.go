// Package usecase implements the account business operations: signup and
// verification, password and phone login, password management and profile
// maintenance.
package usecase

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/account/otp"
	"github.com/otpgate/otpgate/internal/pkg/clock"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/pkg/hash"
	"github.com/otpgate/otpgate/internal/pkg/idempotency"
	"github.com/otpgate/otpgate/internal/pkg/instrument"
	"github.com/otpgate/otpgate/internal/pkg/jwt"
	"github.com/otpgate/otpgate/internal/pkg/storage"
	"github.com/otpgate/otpgate/internal/pkg/uid"
	"github.com/otpgate/otpgate/internal/pkg/validator"
)

// UserRepo persists accounts.
type UserRepo interface {
	// Create inserts a new user.
	Create(ctx context.Context, user entity.User) error
	// FindByID returns the user or goerror.ErrNotFound.
	FindByID(ctx context.Context, id uint64) (*entity.User, error)
	// FindByEmail returns the user or goerror.ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	// FindByPhone returns the user or goerror.ErrNotFound.
	FindByPhone(ctx context.Context, phone string) (*entity.User, error)
	// MarkVerified sets both verification flags.
	MarkVerified(ctx context.Context, id uint64) error
	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error
	// UpdateProfile saves name, city, contact points and verification flags.
	UpdateProfile(ctx context.Context, user entity.User) error
	// UpdateAvatar saves the avatar URL.
	UpdateAvatar(ctx context.Context, id uint64, url string) error
}

// OtpService issues and verifies one-time codes. Implemented by otp.Engine.
type OtpService interface {
	Issue(ctx context.Context, identifier string, channel entity.Channel, purpose entity.Purpose) error
	Verify(ctx context.Context, identifier string, purpose entity.Purpose, code string) error
}

// EventPublisher emits domain events. Delivery is best effort and must never
// fail the business operation.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload map[string]any)
}

// Dependency lists everything the Usecase needs.
type Dependency struct {
	Validator validator.Validator
	Hash      hash.Hash
	JWT       jwt.JWT
	Clock     clock.Clocker
	UID       uid.NumberID
	Tele      instrument.Instrumentation
	Users     UserRepo
	Otp       OtpService
	Events    EventPublisher
	Idem      idempotency.Idempotency
	Storage   storage.Storage

	// AvatarBucket is the object storage bucket for profile pictures.
	AvatarBucket string
	// AvatarURLTTL is the expiry of signed avatar download links.
	AvatarURLTTL time.Duration
}

// Usecase carries the account business operations.
type Usecase struct {
	validator validator.Validator
	hash      hash.Hash
	jwt       jwt.JWT
	clock     clock.Clocker
	uid       uid.NumberID
	tele      instrument.Instrumentation
	users     UserRepo
	otp       OtpService
	events    EventPublisher
	idem      idempotency.Idempotency
	storage   storage.Storage

	avatarBucket string
	avatarURLTTL time.Duration
}

// New constructs the account Usecase.
func New(dep Dependency) *Usecase {
	return &Usecase{
		validator:    dep.Validator,
		hash:         dep.Hash,
		jwt:          dep.JWT,
		clock:        dep.Clock,
		uid:          dep.UID,
		tele:         dep.Tele,
		users:        dep.Users,
		otp:          dep.Otp,
		events:       dep.Events,
		idem:         dep.Idem,
		storage:      dep.Storage,
		avatarBucket: dep.AvatarBucket,
		avatarURLTTL: dep.AvatarURLTTL,
	}
}

func (u *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return u.tele.Tracer("internal.account.usecase").Start(ctx, name)
}

// publish emits a domain event without affecting the operation outcome.
func (u *Usecase) publish(ctx context.Context, event string, payload map[string]any) {
	if u.events == nil {
		return
	}
	u.events.Publish(ctx, event, payload)
}

// currentUser resolves the authenticated account from the request context.
func (u *Usecase) currentUser(ctx context.Context) (*entity.User, error) {
	claims := jwt.GetAuth(ctx)
	if claims == nil {
		return nil, goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
	}

	user, err := u.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, goerror.ErrNotFound) {
			return nil, goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
		}
		return nil, goerror.NewServer(err)
	}
	return user, nil
}

// mapOtpError translates challenge lifecycle failures into the error taxonomy
// served to clients. The otp error messages are already user facing.
func mapOtpError(err error) error {
	var (
		expired *otp.ExpiredError
		invalid *otp.InvalidCodeError
		deliver *otp.DeliveryError
	)

	switch {
	case errors.Is(err, otp.ErrRateLimited):
		return goerror.NewBusiness("A code was sent recently, please wait before requesting another", goerror.CodeTooManyRequest)
	case errors.Is(err, otp.ErrNoChallenge):
		return goerror.NewBusiness("No verification code found, request a new one", goerror.CodeNotFound)
	case errors.Is(err, otp.ErrCodeUsed):
		return goerror.NewBusiness("Verification code already used", goerror.CodeConflict)
	case errors.Is(err, otp.ErrTooManyAttempts):
		return goerror.NewBusiness("Maximum verification attempts exceeded, request a new code", goerror.CodeTooManyRequest)
	case errors.As(err, &expired):
		return goerror.NewBusiness(expired.Error(), goerror.CodeInvalidInput)
	case errors.As(err, &invalid):
		return goerror.NewBusiness(invalid.Error(), goerror.CodeInvalidInput)
	case errors.As(err, &deliver):
		return goerror.NewServer(err)
	default:
		return goerror.NewServer(err)
	}
}

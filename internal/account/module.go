// Package account wires the account module: registration, verification, login
// and profile management guarded by one-time codes.
package account

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otpgate/otpgate/internal/account/inbound"
	"github.com/otpgate/otpgate/internal/account/otp"
	"github.com/otpgate/otpgate/internal/account/outbound/db"
	"github.com/otpgate/otpgate/internal/account/outbound/mq"
	"github.com/otpgate/otpgate/internal/account/outbound/notify"
	"github.com/otpgate/otpgate/internal/account/usecase"
	"github.com/otpgate/otpgate/internal/pkg/clock"
	"github.com/otpgate/otpgate/internal/pkg/config"
	"github.com/otpgate/otpgate/internal/pkg/goroutine"
	"github.com/otpgate/otpgate/internal/pkg/hash"
	"github.com/otpgate/otpgate/internal/pkg/idempotency"
	"github.com/otpgate/otpgate/internal/pkg/instrument"
	"github.com/otpgate/otpgate/internal/pkg/jwt"
	"github.com/otpgate/otpgate/internal/pkg/mail"
	"github.com/otpgate/otpgate/internal/pkg/messaging"
	"github.com/otpgate/otpgate/internal/pkg/router"
	"github.com/otpgate/otpgate/internal/pkg/sms"
	"github.com/otpgate/otpgate/internal/pkg/storage"
	"github.com/otpgate/otpgate/internal/pkg/uid"
	"github.com/otpgate/otpgate/internal/pkg/validator"
)

type Dependency struct {
	DBConn      *pgxpool.Pool              `validate:"required"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Router      *router.Router             `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"required"`
	Messaging   messaging.Publisher        `validate:"required"`
	Storage     storage.Storage            `validate:"required"`
	Mail        mail.Mail                  `validate:"required"`
	SMS         sms.SMS                    `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UID         uid.NumberID               `validate:"required"`
	PassHash    hash.Hash                  `validate:"required"`
	CodeHash    hash.Hash                  `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
	JWT         jwt.JWT                    `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	users := db.NewUsers(dep.DBConn, dep.Instrument)
	challenges := db.NewChallenges(dep.DBConn, dep.Instrument)
	sender := notify.New(dep.Mail, dep.SMS, dep.Instrument)
	events := mq.NewMessaging(dep.Messaging, dep.Goroutine, dep.Instrument)

	engine := otp.NewEngine(otp.Dependency{
		Store:  challenges,
		Sender: sender,
		Hasher: dep.CodeHash,
		Clock:  dep.Clock,
		UID:    dep.UID,
		Config: otp.Config{
			TTL:         dep.Config.GetMinute("modules.account.otp_ttl_minutes"),
			Cooldown:    dep.Config.GetMinute("modules.account.otp_cooldown_minutes"),
			MaxAttempts: dep.Config.GetInt("modules.account.otp_max_attempts"),
		},
	})

	uc := usecase.New(usecase.Dependency{
		Validator:    dep.Validator,
		Hash:         dep.PassHash,
		JWT:          dep.JWT,
		Clock:        dep.Clock,
		UID:          dep.UID,
		Tele:         dep.Instrument,
		Users:        users,
		Otp:          engine,
		Events:       events,
		Idem:         dep.Idempotency,
		Storage:      dep.Storage,
		AvatarBucket: dep.Config.GetString("modules.account.avatar_bucket"),
		AvatarURLTTL: dep.Config.GetMinute("modules.account.avatar_url_ttl_minutes"),
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}

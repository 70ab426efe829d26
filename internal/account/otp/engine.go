// Package otp implements the one-time code challenge lifecycle: issuing
// codes, delivering them, and verifying submissions against the most recent
// challenge.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/pkg/clock"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/pkg/hash"
	"github.com/otpgate/otpgate/internal/pkg/uid"
)

// ChallengeStore persists challenges.
//
// AddAttempt and MarkVerified are conditional writes: they must only apply
// when the row still matches the expected state, and return
// goerror.ErrConflict otherwise. This keeps racing verifications correct even
// though the engine also serializes per key in-process.
type ChallengeStore interface {
	// Create inserts a new challenge.
	Create(ctx context.Context, ch entity.OtpChallenge) error
	// MostRecent returns the latest challenge for the identifier and purpose,
	// or goerror.ErrNotFound when none exists.
	MostRecent(ctx context.Context, identifier string, purpose entity.Purpose) (*entity.OtpChallenge, error)
	// AddAttempt increments the attempt counter when the challenge is still
	// unverified and the counter equals expectedAttempts.
	AddAttempt(ctx context.Context, id uint64, expectedAttempts int) error
	// MarkVerified flips the challenge to verified when it is not already.
	MarkVerified(ctx context.Context, id uint64) error
	// Delete removes a challenge, used to roll back failed deliveries.
	Delete(ctx context.Context, id uint64) error
}

// CodeSender delivers raw codes to the user. Implementations route to email
// or SMS transports.
type CodeSender interface {
	SendEmailCode(ctx context.Context, email string, purpose entity.Purpose, code string) error
	SendPhoneCode(ctx context.Context, phone string, purpose entity.Purpose, code string) error
}

// Config holds the challenge lifecycle parameters.
type Config struct {
	// TTL is how long an issued code stays valid.
	TTL time.Duration
	// Cooldown is the minimum delay between two code requests for the same
	// identifier and purpose.
	Cooldown time.Duration
	// MaxAttempts is the number of wrong submissions tolerated per challenge.
	MaxAttempts int
}

// Dependency lists what the Engine needs to operate.
type Dependency struct {
	Store  ChallengeStore
	Sender CodeSender
	Hasher hash.Hash
	Clock  clock.Clocker
	UID    uid.NumberID
	Config Config
}

// Engine issues and verifies one-time codes.
//
// All state transitions for one (identifier, purpose) pair are serialized
// through a sharded in-process lock, so concurrent requests observe a
// consistent most-recent challenge.
type Engine struct {
	store  ChallengeStore
	sender CodeSender
	hasher hash.Hash
	clock  clock.Clocker
	uid    uid.NumberID
	cfg    Config

	locks [64]sync.Mutex
}

// NewEngine constructs an Engine.
func NewEngine(dep Dependency) *Engine {
	return &Engine{
		store:  dep.Store,
		sender: dep.Sender,
		hasher: dep.Hasher,
		clock:  dep.Clock,
		uid:    dep.UID,
		cfg:    dep.Config,
	}
}

// Issue creates a fresh challenge for the identifier and purpose and delivers
// the code over the given channel.
//
// A new code supersedes any previous one for the same pair. Requests inside
// the cooldown window of a still-live challenge fail with ErrRateLimited.
// When delivery fails the challenge is removed again and a DeliveryError is
// returned; the raw code never leaves this method in any other way.
func (e *Engine) Issue(ctx context.Context, identifier string, channel entity.Channel, purpose entity.Purpose) error {
	lock := e.lockFor(identifier, purpose)
	lock.Lock()
	defer lock.Unlock()

	now := e.clock.Now()

	prev, err := e.store.MostRecent(ctx, identifier, purpose)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		return err
	}
	if prev != nil && !prev.Verified && now.Before(prev.ExpiresAt) && now.Sub(prev.CreatedAt) < e.cfg.Cooldown {
		return ErrRateLimited
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	codeHash, err := e.hasher.Hash(code)
	if err != nil {
		return err
	}

	ch := entity.OtpChallenge{
		ID:         e.uid.Generate(),
		Identifier: identifier,
		Channel:    channel,
		Purpose:    purpose,
		CodeHash:   string(codeHash),
		Attempts:   0,
		Verified:   false,
		CreatedAt:  now,
		ExpiresAt:  now.Add(e.cfg.TTL),
	}
	if err := e.store.Create(ctx, ch); err != nil {
		return err
	}

	if err := e.deliver(ctx, ch, code); err != nil {
		if delErr := e.store.Delete(ctx, ch.ID); delErr != nil {
			slog.WarnContext(ctx, "failed to roll back undelivered challenge", "error", delErr)
		}
		return &DeliveryError{Err: err}
	}

	return nil
}

// Verify checks a submitted code against the most recent challenge for the
// identifier and purpose.
//
// The checks run in a fixed order: existence, replay, expiry, attempt budget,
// then the code comparison itself. A successful verification is terminal; the
// same code verified twice reports ErrCodeUsed on the second call.
func (e *Engine) Verify(ctx context.Context, identifier string, purpose entity.Purpose, code string) error {
	lock := e.lockFor(identifier, purpose)
	lock.Lock()
	defer lock.Unlock()

	ch, err := e.store.MostRecent(ctx, identifier, purpose)
	if err != nil {
		if errors.Is(err, goerror.ErrNotFound) {
			return ErrNoChallenge
		}
		return err
	}

	if ch.Verified {
		return ErrCodeUsed
	}
	if e.clock.Now().After(ch.ExpiresAt) {
		return &ExpiredError{TTL: e.cfg.TTL}
	}
	if ch.Attempts >= e.cfg.MaxAttempts {
		return ErrTooManyAttempts
	}

	if !e.hasher.Verify(ch.CodeHash, code) {
		if err := e.store.AddAttempt(ctx, ch.ID, ch.Attempts); err != nil {
			if errors.Is(err, goerror.ErrConflict) {
				return e.staleChallengeError(ctx, identifier, purpose)
			}
			return err
		}
		return &InvalidCodeError{Remaining: e.cfg.MaxAttempts - (ch.Attempts + 1)}
	}

	if err := e.store.MarkVerified(ctx, ch.ID); err != nil {
		if errors.Is(err, goerror.ErrConflict) {
			return ErrCodeUsed
		}
		return err
	}

	return nil
}

// staleChallengeError classifies a lost conditional write. The racing winner
// either verified the challenge, meaning this code is now spent, or consumed
// an attempt, meaning the budget moved on.
func (e *Engine) staleChallengeError(ctx context.Context, identifier string, purpose entity.Purpose) error {
	ch, err := e.store.MostRecent(ctx, identifier, purpose)
	if err != nil {
		if errors.Is(err, goerror.ErrNotFound) {
			return ErrNoChallenge
		}
		return err
	}
	if ch.Verified {
		return ErrCodeUsed
	}
	return ErrTooManyAttempts
}

func (e *Engine) deliver(ctx context.Context, ch entity.OtpChallenge, code string) error {
	switch ch.Channel {
	case entity.ChannelSMS:
		return e.sender.SendPhoneCode(ctx, ch.Identifier, ch.Purpose, code)
	default:
		return e.sender.SendEmailCode(ctx, ch.Identifier, ch.Purpose, code)
	}
}

func (e *Engine) lockFor(identifier string, purpose entity.Purpose) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(identifier))
	h.Write([]byte{0})
	h.Write([]byte(purpose))
	return &e.locks[h.Sum32()%uint32(len(e.locks))]
}

// generateCode draws a uniform 6-digit code from crypto/rand.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

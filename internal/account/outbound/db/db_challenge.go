package db

import (
	"context"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
)

func (s *Challenges) Create(ctx context.Context, ch entity.OtpChallenge) (err error) {
	ctx, span := s.startSpan(ctx, "CreateChallenge")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		INSERT INTO otp_challenges (id, identifier, channel, purpose, code_hash, attempts,
			verified, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ch.ID, ch.Identifier, ch.Channel, ch.Purpose, ch.CodeHash, ch.Attempts,
		ch.Verified, ch.CreatedAt, ch.ExpiresAt,
	)
	return s.mapError(err)
}

func (s *Challenges) MostRecent(ctx context.Context, identifier string, purpose entity.Purpose) (_ *entity.OtpChallenge, err error) {
	ctx, span := s.startSpan(ctx, "MostRecentChallenge")
	defer func() { s.endSpan(span, err) }()

	var ch entity.OtpChallenge
	err = s.conn.QueryRow(ctx, `
		SELECT id, identifier, channel, purpose, code_hash, attempts, verified, created_at, expires_at
		FROM otp_challenges
		WHERE identifier = $1 AND purpose = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, identifier, purpose,
	).Scan(&ch.ID, &ch.Identifier, &ch.Channel, &ch.Purpose, &ch.CodeHash,
		&ch.Attempts, &ch.Verified, &ch.CreatedAt, &ch.ExpiresAt)
	if err != nil {
		return nil, s.mapError(err)
	}
	return &ch, nil
}

// AddAttempt bumps the attempt counter only when the challenge is
// still unverified and the counter has not moved since it was read. A lost
// race surfaces as goerror.ErrConflict.
func (s *Challenges) AddAttempt(ctx context.Context, id uint64, expectedAttempts int) (err error) {
	ctx, span := s.startSpan(ctx, "AddChallengeAttempt")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `
		UPDATE otp_challenges SET attempts = attempts + 1
		WHERE id = $1 AND verified = false AND attempts = $2`, id, expectedAttempts)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrConflict
	}
	return nil
}

// MarkVerified flips the challenge to verified exactly once.
func (s *Challenges) MarkVerified(ctx context.Context, id uint64) (err error) {
	ctx, span := s.startSpan(ctx, "MarkChallengeVerified")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `
		UPDATE otp_challenges SET verified = true
		WHERE id = $1 AND verified = false`, id)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrConflict
	}
	return nil
}

func (s *Challenges) Delete(ctx context.Context, id uint64) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteChallenge")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `DELETE FROM otp_challenges WHERE id = $1`, id)
	return s.mapError(err)
}

package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/otpgate/otpgate/internal/account/entity"
)

const userColumns = `id, first_name, last_name, city, email, phone, password_hash,
	email_verified, phone_verified, avatar_url, created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	var u entity.User
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.City, &u.Email, &u.Phone, &u.PasswordHash,
		&u.EmailVerified, &u.PhoneVerified, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Users) Create(ctx context.Context, user entity.User) (err error) {
	ctx, span := s.startSpan(ctx, "Create")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, city, email, phone, password_hash,
			email_verified, phone_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`,
		user.ID, user.FirstName, user.LastName, user.City, user.Email, user.Phone,
		user.PasswordHash, user.EmailVerified, user.PhoneVerified,
	)
	return s.mapError(err)
}

func (s *Users) FindByID(ctx context.Context, id uint64) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "FindByID")
	defer func() { s.endSpan(span, err) }()

	user, err := scanUser(s.conn.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, s.mapError(err)
	}
	return user, nil
}

func (s *Users) FindByEmail(ctx context.Context, email string) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "FindByEmail")
	defer func() { s.endSpan(span, err) }()

	user, err := scanUser(s.conn.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, s.mapError(err)
	}
	return user, nil
}

func (s *Users) FindByPhone(ctx context.Context, phone string) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "FindByPhone")
	defer func() { s.endSpan(span, err) }()

	user, err := scanUser(s.conn.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
	if err != nil {
		return nil, s.mapError(err)
	}
	return user, nil
}

func (s *Users) MarkVerified(ctx context.Context, id uint64) (err error) {
	ctx, span := s.startSpan(ctx, "MarkVerified")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		UPDATE users SET email_verified = true, phone_verified = true, updated_at = now()
		WHERE id = $1`, id)
	return s.mapError(err)
}

func (s *Users) UpdatePassword(ctx context.Context, id uint64, passwordHash string) (err error) {
	ctx, span := s.startSpan(ctx, "UpdatePassword")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now()
		WHERE id = $1`, id, passwordHash)
	return s.mapError(err)
}

func (s *Users) UpdateProfile(ctx context.Context, user entity.User) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateProfile")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		UPDATE users SET first_name = $2, last_name = $3, city = $4, email = $5, phone = $6,
			email_verified = $7, phone_verified = $8, updated_at = now()
		WHERE id = $1`,
		user.ID, user.FirstName, user.LastName, user.City, user.Email, user.Phone,
		user.EmailVerified, user.PhoneVerified,
	)
	return s.mapError(err)
}

func (s *Users) UpdateAvatar(ctx context.Context, id uint64, url string) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateAvatar")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		UPDATE users SET avatar_url = $2, updated_at = now()
		WHERE id = $1`, id, url)
	return s.mapError(err)
}

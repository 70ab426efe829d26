// Package db persists accounts and verification challenges in PostgreSQL.
package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/pkg/instrument"
)

type base struct {
	conn *pgxpool.Pool
	ins  instrument.Instrumentation
}

// mapError folds driver errors into the repository sentinels:
// - pgx.ErrNoRows → goerror.ErrNotFound
// - 23505 unique violation → goerror.ErrConflict
func (s *base) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return goerror.ErrConflict
	}

	return err
}

func (s *base) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("account.outbound.db").Start(ctx, name)
}

func (s *base) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Users is the account repository.
type Users struct {
	base
}

func NewUsers(conn *pgxpool.Pool, ins instrument.Instrumentation) *Users {
	return &Users{base{conn: conn, ins: ins}}
}

// Challenges is the verification challenge store.
type Challenges struct {
	base
}

func NewChallenges(conn *pgxpool.Pool, ins instrument.Instrumentation) *Challenges {
	return &Challenges{base{conn: conn, ins: ins}}
}

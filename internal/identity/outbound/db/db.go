// Package db persists identity state in PostgreSQL: end users,
// administrators and the per-identifier verification challenge. Codes and
// personal fields are sealed with the crypter before they are written.
package db

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/otpgate/internal/pkg/crypter"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

//go:embed schema.sql
var schema string

const pgUniqueViolation = "23505"

type DB struct {
	conn    *pgxpool.Pool
	crypter crypter.Crypter
	tracer  trace.Tracer
}

func NewDB(conn *pgxpool.Pool, c crypter.Crypter, ins instrument.Instrumentation) *DB {
	return &DB{
		conn:    conn,
		crypter: c,
		tracer:  ins.Tracer("identity.outbound.db"),
	}
}

// Migrate applies schema.sql. Every statement in it is idempotent.
func (s *DB) Migrate(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "Migrate")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, schema)
	return err
}

// mapError turns missing rows into goerror.ErrNotFound and unique violations
// into goerror.ErrConflict.
func (s *DB) mapError(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return goerror.ErrNotFound
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		return goerror.ErrConflict
	default:
		return err
	}
}

func (s *DB) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.ErrorContext(ctx, "failed to rollback", "error", err)
	}
}

func (s *DB) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
		),
	)
}

// endSpan leaves expected outcomes (not found, conflict) unmarked.
func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

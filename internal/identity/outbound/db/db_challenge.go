package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/otpgate/internal/identity/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/crypter"
)

const (
	upsertChallenge = `
INSERT INTO identity_challenges (identifier, code, created_at, expires_at, attempts, exhausted_at)
VALUES ($1, $2, $3, $4, 0, '{}')
ON CONFLICT (identifier) DO UPDATE SET
    code = EXCLUDED.code,
    created_at = EXCLUDED.created_at,
    expires_at = EXCLUDED.expires_at,
    attempts = 0,
    exhausted_at = ARRAY(
        SELECT t FROM unnest(identity_challenges.exhausted_at) AS t WHERE t > $5 ORDER BY t
    )`

	getChallenge = `
SELECT code, created_at, expires_at, attempts
FROM identity_challenges
WHERE identifier = $1`

	getChallengeForUpdate = getChallenge + `
FOR UPDATE`

	reserveChallengeAttempt = `
UPDATE identity_challenges
SET attempts = attempts + 1,
    exhausted_at = CASE
        WHEN attempts + 1 >= $2 THEN array_append(exhausted_at, $3::timestamptz)
        ELSE exhausted_at
    END
WHERE identifier = $1 AND attempts < $2`

	// the reservation that reached the cap appended the last exhausted_at
	// entry, and no other reservation can append after it
	releaseChallengeAttempt = `
UPDATE identity_challenges
SET attempts = attempts - 1,
    exhausted_at = CASE
        WHEN attempts >= $3 THEN trim_array(exhausted_at, 1)
        ELSE exhausted_at
    END
WHERE identifier = $1 AND created_at = $2 AND attempts > 0`

	countExhaustedChallenges = `
SELECT count(*)
FROM identity_challenges, unnest(exhausted_at) AS t
WHERE identifier = $1 AND t > $2`

	deleteChallenge = `DELETE FROM identity_challenges WHERE identifier = $1`
)

func codeScope(identifier string) crypter.Scope {
	return crypter.Scope{Subject: identifier, Purpose: crypter.PurposeOTPCode}
}

func (s *DB) UpsertChallenge(ctx context.Context, c entity.Challenge, pruneBefore time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "UpsertChallenge")
	defer func() { s.endSpan(span, err) }()

	sealed, err := s.crypter.Seal([]byte(c.Code), codeScope(c.Identifier))
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(ctx, upsertChallenge, c.Identifier, sealed, c.CreatedAt, c.ExpiresAt, pruneBefore)
	return s.mapError(err)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *DB) readChallenge(ctx context.Context, q querier, query, identifier string) (*entity.Challenge, error) {
	var (
		sealed []byte
		c      = entity.Challenge{Identifier: identifier}
	)
	if err := q.QueryRow(ctx, query, identifier).Scan(&sealed, &c.CreatedAt, &c.ExpiresAt, &c.Attempts); err != nil {
		return nil, s.mapError(err)
	}

	code, err := s.crypter.Open(sealed, codeScope(identifier))
	if err != nil {
		return nil, err
	}
	c.Code = string(code)

	return &c, nil
}

// ReserveChallengeAttempt locks the challenge of identifier and, while it is
// live and below maxAttempts, counts one attempt against it before any code
// is compared. The returned challenge carries the count seen before the
// reservation, so concurrent callers each observe a distinct value and at
// most maxAttempts of them get to compare.
//
// A caller whose code matches gives the attempt back with
// ReleaseChallengeAttempt.
func (s *DB) ReserveChallengeAttempt(ctx context.Context, identifier string, maxAttempts int, at time.Time) (_ *entity.Challenge, err error) {
	ctx, span := s.startSpan(ctx, "ReserveChallengeAttempt")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer s.rollback(ctx, tx)

	c, err := s.readChallenge(ctx, tx, getChallengeForUpdate, identifier)
	if err != nil {
		return nil, err
	}

	if !c.IsExpired(at) && c.Attempts < maxAttempts {
		if _, err = tx.Exec(ctx, reserveChallengeAttempt, identifier, maxAttempts, at); err != nil {
			return nil, s.mapError(err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, s.mapError(err)
	}

	return c, nil
}

// ReleaseChallengeAttempt undoes the reservation taken for c. It is a no-op
// once c has been replaced or removed.
func (s *DB) ReleaseChallengeAttempt(ctx context.Context, c entity.Challenge, maxAttempts int) (err error) {
	ctx, span := s.startSpan(ctx, "ReleaseChallengeAttempt")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, releaseChallengeAttempt, c.Identifier, c.CreatedAt, maxAttempts)
	return s.mapError(err)
}

func (s *DB) CountExhaustedChallenges(ctx context.Context, identifier string, since time.Time) (_ int, err error) {
	ctx, span := s.startSpan(ctx, "CountExhaustedChallenges")
	defer func() { s.endSpan(span, err) }()

	var n int
	if err := s.conn.QueryRow(ctx, countExhaustedChallenges, identifier, since).Scan(&n); err != nil {
		return 0, s.mapError(err)
	}

	return n, nil
}

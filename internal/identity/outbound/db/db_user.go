package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/otpgate/internal/identity/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

const userColumns = `id, user_number, email, phone, name, date_of_birth, login_method,
    COALESCE(password_hash, ''), is_blocked, created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	var (
		u      entity.User
		method string
	)
	if err := row.Scan(
		&u.ID,
		&u.UserNumber,
		&u.Email,
		&u.Phone,
		&u.Name,
		&u.DateOfBirth,
		&method,
		&u.PasswordHash,
		&u.IsBlocked,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.LoginMethod = entity.ChannelFromString(method)

	return &u, nil
}

func (s *DB) GetUserByID(ctx context.Context, id int64) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByID")
	defer func() { s.endSpan(span, err) }()

	u, err := scanUser(s.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM identity_users WHERE id = $1`, id))
	if err != nil {
		return nil, s.mapError(err)
	}

	return u, nil
}

func (s *DB) GetUserByIdentifier(ctx context.Context, identifier string) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByIdentifier")
	defer func() { s.endSpan(span, err) }()

	u, err := scanUser(s.conn.QueryRow(ctx,
		`SELECT `+userColumns+` FROM identity_users WHERE email = $1 OR phone = $1 LIMIT 1`,
		identifier,
	))
	if err != nil {
		return nil, s.mapError(err)
	}

	return u, nil
}

// GetUserByEmailOrPhone prefers the account owning email when the two
// identifiers belong to different accounts.
func (s *DB) GetUserByEmailOrPhone(ctx context.Context, email, phone string) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByEmailOrPhone")
	defer func() { s.endSpan(span, err) }()

	u, err := scanUser(s.conn.QueryRow(ctx,
		`SELECT `+userColumns+` FROM identity_users
WHERE email = $1 OR phone = $2
ORDER BY (email = $1) DESC
LIMIT 1`,
		email, phone,
	))
	if err != nil {
		return nil, s.mapError(err)
	}

	return u, nil
}

func (s *DB) GetPublicProfile(ctx context.Context, userNumber int64) (_ *entity.PublicProfile, err error) {
	ctx, span := s.startSpan(ctx, "GetPublicProfile")
	defer func() { s.endSpan(span, err) }()

	p := entity.PublicProfile{UserNumber: userNumber}
	if err := s.conn.QueryRow(ctx,
		`SELECT name, created_at FROM identity_users WHERE user_number = $1`,
		userNumber,
	).Scan(&p.Name, &p.CreatedAt); err != nil {
		return nil, s.mapError(err)
	}

	return &p, nil
}

// NewUser takes the next display number from the counter row and inserts the
// user in one transaction. The counter row lock serializes registrations so
// numbers are gapless unless a registration fails.
func (s *DB) NewUser(ctx context.Context, nu entity.NewUser) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "NewUser")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer s.rollback(ctx, tx)

	var number int64
	if err := tx.QueryRow(ctx,
		`UPDATE identity_user_counter SET next_number = next_number + 1 WHERE id = 1 RETURNING next_number - 1`,
	).Scan(&number); err != nil {
		return nil, s.mapError(err)
	}

	u, err := scanUser(tx.QueryRow(ctx,
		`INSERT INTO identity_users (id, user_number, email, phone, name, date_of_birth, login_method)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+userColumns,
		nu.ID, number, nu.Email, nu.Phone, nu.Name, nu.DateOfBirth, nu.LoginMethod.String(),
	))
	if err != nil {
		return nil, s.mapError(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, s.mapError(err)
	}

	return u, nil
}

func (s *DB) UpdateUserProfile(ctx context.Context, id int64, name string, dateOfBirth time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateUserProfile")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx,
		`UPDATE identity_users SET name = $2, date_of_birth = $3, updated_at = NOW() WHERE id = $1`,
		id, name, dateOfBirth,
	)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}

	return nil
}

// ResetUserPassword spends the challenge that authorized the reset and stores
// the new hash. It returns goerror.ErrConflict when the challenge is already
// gone, which is how the loser of two resets racing on one code finds out.
func (s *DB) ResetUserPassword(ctx context.Context, userID int64, identifier, newHash string) (err error) {
	ctx, span := s.startSpan(ctx, "ResetUserPassword")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer s.rollback(ctx, tx)

	tag, err := tx.Exec(ctx, deleteChallenge, identifier)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrConflict
	}

	tag, err = tx.Exec(ctx,
		`UPDATE identity_users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		userID, newHash,
	)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}

	if err = tx.Commit(ctx); err != nil {
		return s.mapError(err)
	}

	return nil
}

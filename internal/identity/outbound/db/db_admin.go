package db

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/identity/entity"
)

const adminColumns = `id, email, name, password_hash, created_at`

func (s *DB) GetAdminByEmail(ctx context.Context, email string) (_ *entity.Admin, err error) {
	ctx, span := s.startSpan(ctx, "GetAdminByEmail")
	defer func() { s.endSpan(span, err) }()

	var a entity.Admin
	if err := s.conn.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM identity_admins WHERE email = $1`, email,
	).Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.CreatedAt); err != nil {
		return nil, s.mapError(err)
	}

	return &a, nil
}

func (s *DB) GetAdminByID(ctx context.Context, id int64) (_ *entity.Admin, err error) {
	ctx, span := s.startSpan(ctx, "GetAdminByID")
	defer func() { s.endSpan(span, err) }()

	var a entity.Admin
	if err := s.conn.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM identity_admins WHERE id = $1`, id,
	).Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.CreatedAt); err != nil {
		return nil, s.mapError(err)
	}

	return &a, nil
}

// EnsureAdmin inserts the bootstrap administrator unless the email is taken.
// It reports whether a row was created.
func (s *DB) EnsureAdmin(ctx context.Context, a entity.Admin) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "EnsureAdmin")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx,
		`INSERT INTO identity_admins (id, email, name, password_hash) VALUES ($1, $2, $3, $4)
ON CONFLICT (email) DO NOTHING`,
		a.ID, a.Email, a.Name, a.PasswordHash,
	)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"blog/internal/db"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrDuplicateTitle     = errors.New("a post with this title already exists")
	ErrNoAccount          = errors.New("no account with this email address")
	ErrInvalidCredentials = errors.New("incorrect password")
)

const userColumns = `id, name, email, password_hash, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func CreateUser(ctx context.Context, q db.Querier, u *User) error {
	row := q.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	if err := row.Scan(&u.ID); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func CountUsers(ctx context.Context, q db.Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

func GetUserByEmail(ctx context.Context, q db.Querier, email string) (*User, error) {
	return scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func GetUserByID(ctx context.Context, q db.Querier, id int) (*User, error) {
	return scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func SetUserRole(ctx context.Context, q db.Querier, id int, role Role) error {
	res, err := q.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return fmt.Errorf("updating role: %w", err)
	}
	return expectOne(res)
}

// CreateSession revokes the user's other live sessions before inserting the new one.
func CreateSession(ctx context.Context, q db.Querier, s *Session) error {
	_, err := q.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`,
		s.CreatedAt, s.UserID)
	if err != nil {
		return fmt.Errorf("revoking sessions: %w", err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.UserID, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func GetSession(ctx context.Context, q db.Querier, id string) (*Session, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, expires_at, revoked_at FROM sessions WHERE id = ?`, id)
	var s Session
	var revoked sql.NullTime
	if err := row.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if revoked.Valid {
		s.RevokedAt = &revoked.Time
	}
	return &s, nil
}

func RevokeSession(ctx context.Context, q db.Querier, id string, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`, at, id)
	return err
}

// expectOne maps a zero-row update or delete to ErrNotFound.
func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"postflow/internal/model"
	"postflow/internal/repository"
)

const userColumns = `id, email, password_hash, name, role, approved, email_verified,
		verification_token, verification_expires, reset_token, reset_expires,
		login_attempts, lock_until, last_login, created_at, updated_at`

const uniqueViolation = "23505"

// UserPostgres is a PostgreSQL implementation of repository.UserRepository.
type UserPostgres struct {
	db *sql.DB
}

// NewUserPostgres creates a new UserPostgres repository.
func NewUserPostgres(db *sql.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

var _ repository.UserRepository = (*UserPostgres)(nil)

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u                   model.User
		verificationToken   sql.NullString
		verificationExpires sql.NullTime
		resetToken          sql.NullString
		resetExpires        sql.NullTime
		lockUntil           sql.NullTime
		lastLogin           sql.NullTime
	)
	if err := s.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Role,
		&u.Approved,
		&u.EmailVerified,
		&verificationToken,
		&verificationExpires,
		&resetToken,
		&resetExpires,
		&u.LoginAttempts,
		&lockUntil,
		&lastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.VerificationToken = nullString(verificationToken)
	u.VerificationExpires = nullTime(verificationExpires)
	u.ResetToken = nullString(resetToken)
	u.ResetExpires = nullTime(resetExpires)
	u.LockUntil = nullTime(lockUntil)
	u.LastLogin = nullTime(lastLogin)
	return &u, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}

func timePtrArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func stringArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Create inserts a new account. A taken email maps to repository.ErrDuplicateEmail.
func (r *UserPostgres) Create(ctx context.Context, u *model.User) (*model.User, error) {
	q := `
		INSERT INTO users (id, email, password_hash, name, role, approved, email_verified,
			verification_token, verification_expires, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING ` + userColumns
	row := r.db.QueryRowContext(ctx, q,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.Name,
		string(u.Role),
		u.Approved,
		u.EmailVerified,
		stringArg(u.VerificationToken),
		timePtrArg(u.VerificationExpires),
		u.CreatedAt,
	)
	out, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, repository.ErrDuplicateEmail
		}
		return nil, err
	}
	return out, nil
}

func (r *UserPostgres) FindByID(ctx context.Context, id string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, id))
}

func (r *UserPostgres) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.db.QueryRowContext(ctx, q, email))
}

func (r *UserPostgres) FindByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE verification_token = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, token))
}

func (r *UserPostgres) FindByResetToken(ctx context.Context, token string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE reset_token = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, token))
}

// List returns accounts newest first.
func (r *UserPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.User], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, err
	}

	q := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, q, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.User]{Items: items, Total: total}, nil
}

func (r *UserPostgres) SetApproved(ctx context.Context, id string, approved bool) (*model.User, error) {
	q := `UPDATE users SET approved = $2, updated_at = now() WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, q, id, approved))
}

func (r *UserPostgres) SetRole(ctx context.Context, id string, role model.Role) (*model.User, error) {
	q := `UPDATE users SET role = $2, updated_at = now() WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, q, id, string(role)))
}

func (r *UserPostgres) MarkEmailVerified(ctx context.Context, id string) error {
	const q = `
		UPDATE users
		SET email_verified = TRUE, verification_token = NULL, verification_expires = NULL, updated_at = now()
		WHERE id = $1`
	return r.execOne(ctx, q, id)
}

func (r *UserPostgres) SetVerificationToken(ctx context.Context, id, token string, expires time.Time) error {
	const q = `UPDATE users SET verification_token = $2, verification_expires = $3, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, q, id, token, expires)
}

func (r *UserPostgres) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	const q = `UPDATE users SET reset_token = $2, reset_expires = $3, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, q, id, token, expires)
}

func (r *UserPostgres) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const q = `
		UPDATE users
		SET password_hash = $2, reset_token = NULL, reset_expires = NULL,
			login_attempts = 0, lock_until = NULL, updated_at = now()
		WHERE id = $1`
	return r.execOne(ctx, q, id, passwordHash)
}

func (r *UserPostgres) RecordLoginFailure(ctx context.Context, id string, attempts int, lockUntil *time.Time) error {
	const q = `UPDATE users SET login_attempts = $2, lock_until = $3, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, q, id, attempts, timePtrArg(lockUntil))
}

func (r *UserPostgres) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE users SET login_attempts = 0, lock_until = NULL, last_login = $2, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, q, id, at)
}

// execOne runs a single-row update and reports sql.ErrNoRows when nothing matched.
func (r *UserPostgres) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

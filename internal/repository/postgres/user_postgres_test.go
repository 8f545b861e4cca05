package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"testing"
	"time"

	"postflow/internal/model"
	"postflow/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userColumnNames() []string {
	cols := strings.Split(userColumns, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

func userRow(id, email string, approved, verified bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userColumnNames()).AddRow(
		id, email, "$2a$12$hash", "Ada Lovelace", "user", approved, verified,
		"tok", now.Add(24*time.Hour), nil, nil,
		0, nil, nil, now, now,
	)
}

func newUserRepo(t *testing.T) (*UserPostgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserPostgres(db), mock
}

func TestUserPostgres_Create(t *testing.T) {
	repo, mock := newUserRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	token := "tok"
	expires := now.Add(24 * time.Hour)

	u := &model.User{
		ID:                  "user-1",
		Email:               "Ada@Example.com",
		PasswordHash:        "$2a$12$hash",
		Name:                "Ada Lovelace",
		Role:                model.RoleUser,
		VerificationToken:   &token,
		VerificationExpires: &expires,
		CreatedAt:           now,
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("user-1", "Ada@Example.com", "$2a$12$hash", "Ada Lovelace", "user", false, false, "tok", expires, now).
			WillReturnRows(userRow("user-1", "ada@example.com", false, false))

		got, err := repo.Create(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", got.Email)
		require.NotNil(t, got.VerificationToken)
		assert.Nil(t, got.LockUntil)
	})

	t.Run("duplicate email", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO users").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_users_email"})

		got, err := repo.Create(ctx, u)
		assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
		assert.Nil(t, got)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPostgres_FindByEmail(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE lower(email) = lower($1)")).
		WithArgs("ADA@example.com").
		WillReturnRows(userRow("user-1", "ada@example.com", true, true))

	got, err := repo.FindByEmail(context.Background(), "ADA@example.com")
	require.NoError(t, err)
	assert.True(t, got.Approved)
	assert.True(t, got.EmailVerified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPostgres_SetApproved(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET approved = $2")).
		WithArgs("user-1", true).
		WillReturnRows(userRow("user-1", "ada@example.com", true, true))

	got, err := repo.SetApproved(context.Background(), "user-1", true)
	require.NoError(t, err)
	assert.True(t, got.Approved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPostgres_MarkEmailVerified(t *testing.T) {
	repo, mock := newUserRepo(t)
	ctx := context.Background()

	mock.ExpectExec("SET email_verified = TRUE").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.MarkEmailVerified(ctx, "user-1"))

	mock.ExpectExec("SET email_verified = TRUE").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.MarkEmailVerified(ctx, "ghost"), sql.ErrNoRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPostgres_LoginBookkeeping(t *testing.T) {
	repo, mock := newUserRepo(t)
	ctx := context.Background()
	lock := time.Now().Add(time.Hour)
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("SET login_attempts = $2, lock_until = $3")).
		WithArgs("user-1", 5, lock).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET login_attempts = $2, lock_until = $3")).
		WithArgs("user-1", 1, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET login_attempts = 0, lock_until = NULL, last_login = $2")).
		WithArgs("user-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.RecordLoginFailure(ctx, "user-1", 5, &lock))
	assert.NoError(t, repo.RecordLoginFailure(ctx, "user-1", 1, nil))
	assert.NoError(t, repo.RecordLoginSuccess(ctx, "user-1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPostgres_UpdatePassword(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectExec("SET password_hash = \\$2, reset_token = NULL").
		WithArgs("user-1", "newhash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.UpdatePassword(context.Background(), "user-1", "newhash"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPostgres_List(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("FROM users ORDER BY created_at DESC").
		WithArgs(50, 0).
		WillReturnRows(userRow("user-1", "ada@example.com", false, true))

	res, err := repo.List(context.Background(), repository.PageQuery{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Len(t, res.Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

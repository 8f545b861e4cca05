package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"postflow/internal/auth"
	"postflow/internal/logger"
	"postflow/internal/model"
	notifyMocks "postflow/internal/notify/mocks"
	"postflow/internal/repository"
	repoMocks "postflow/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newAuthFixture(t *testing.T) (*authService, *repoMocks.MockUserRepository, *notifyMocks.MockNotifier) {
	t.Helper()
	users := new(repoMocks.MockUserRepository)
	n := new(notifyMocks.MockNotifier)
	svc := NewAuthService(users, auth.NewTokenManager("secret", time.Hour), n, bcrypt.MinCost, logger.Nop()).(*authService)
	svc.now = func() time.Time { return fixedNow }
	return svc, users, n
}

func hashed(t *testing.T, pw string) string {
	t.Helper()
	h, err := auth.HashPassword(pw, bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates unverified user and sends emails", func(t *testing.T) {
		svc, users, n := newAuthFixture(t)
		var created *model.User
		users.On("Create", ctx, mock.Anything).
			Run(func(args mock.Arguments) { created = args.Get(1).(*model.User) }).
			Return(&model.User{ID: "new", Email: "ana@example.com", Name: "Ana"}, nil).Once()
		n.On("Verification", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		n.On("ApprovalRequired", mock.Anything, mock.Anything).Return(nil)

		u, err := svc.Register(ctx, RegisterInput{Email: "  Ana@Example.COM ", Password: "Passw0rd!", Name: " Ana "})
		require.NoError(t, err)
		assert.Equal(t, "new", u.ID)

		require.NotNil(t, created)
		assert.Equal(t, "ana@example.com", created.Email)
		assert.Equal(t, "Ana", created.Name)
		assert.Equal(t, model.RoleUser, created.Role)
		assert.False(t, created.Approved)
		assert.False(t, created.EmailVerified)
		assert.True(t, auth.CheckPassword(created.PasswordHash, "Passw0rd!"))
		require.NotNil(t, created.VerificationToken)
		assert.Len(t, *created.VerificationToken, 64)
		assert.Equal(t, fixedNow.Add(24*time.Hour), *created.VerificationExpires)

		n.AssertCalled(t, "Verification", mock.Anything, u, *created.VerificationToken)
		n.AssertCalled(t, "ApprovalRequired", mock.Anything, u)
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		users.On("Create", ctx, mock.Anything).Return(nil, repository.ErrDuplicateEmail)

		_, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "Passw0rd", Name: "Ana"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("weak password", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		_, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "password", Name: "Ana"})
		assert.ErrorIs(t, err, ErrWeakPassword)
		users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("email failure does not fail registration", func(t *testing.T) {
		svc, users, n := newAuthFixture(t)
		users.On("Create", ctx, mock.Anything).Return(&model.User{ID: "new"}, nil)
		n.On("Verification", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
		n.On("ApprovalRequired", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

		_, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "Passw0rd", Name: "Ana"})
		assert.NoError(t, err)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	pwHash := hashed(t, "Passw0rd")
	past := fixedNow.Add(-time.Minute)
	future := fixedNow.Add(time.Minute)

	active := func() *model.User {
		return &model.User{ID: "u1", Email: "ana@example.com", PasswordHash: pwHash, Role: model.RoleUser, Approved: true, EmailVerified: true}
	}

	t.Run("success issues token", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		users.On("FindByEmail", ctx, "ana@example.com").Return(active(), nil)
		users.On("RecordLoginSuccess", ctx, "u1", fixedNow).Return(nil)

		res, err := svc.Login(ctx, "ANA@example.com", "Passw0rd")
		require.NoError(t, err)
		assert.Equal(t, fixedNow, *res.User.LastLogin)

		claims, err := auth.NewTokenManager("secret", time.Hour).Parse(res.Token)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.True(t, claims.Approved)
	})

	t.Run("unverified email", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		u := active()
		u.EmailVerified = false
		users.On("FindByEmail", ctx, "ana@example.com").Return(u, nil)

		_, err := svc.Login(ctx, "ana@example.com", "Passw0rd")
		assert.ErrorIs(t, err, ErrEmailNotVerified)
		assert.Equal(t, "Email not verified", err.Error())
	})

	t.Run("unapproved account", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		u := active()
		u.Approved = false
		users.On("FindByEmail", ctx, "ana@example.com").Return(u, nil)

		_, err := svc.Login(ctx, "ana@example.com", "Passw0rd")
		assert.ErrorIs(t, err, ErrAccountNotApproved)
	})

	t.Run("unknown email", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		users.On("FindByEmail", ctx, "nobody@example.com").Return(nil, sql.ErrNoRows)

		_, err := svc.Login(ctx, "nobody@example.com", "Passw0rd")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("wrong password counts attempt", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		u := active()
		u.LoginAttempts = 2
		users.On("FindByEmail", ctx, "ana@example.com").Return(u, nil)
		users.On("RecordLoginFailure", ctx, "u1", 3, (*time.Time)(nil)).Return(nil)

		_, err := svc.Login(ctx, "ana@example.com", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		users.AssertExpectations(t)
	})

	t.Run("fifth failure locks for an hour", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		u := active()
		u.LoginAttempts = 4
		users.On("FindByEmail", ctx, "ana@example.com").Return(u, nil)
		users.On("RecordLoginFailure", ctx, "u1", 5, mock.MatchedBy(func(lock *time.Time) bool {
			return lock != nil && lock.Equal(fixedNow.Add(time.Hour))
		})).Return(nil)

		_, err := svc.Login(ctx, "ana@example.com", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		users.AssertExpectations(t)
	})

	t.Run("locked account", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		u := active()
		u.LoginAttempts = 5
		u.LockUntil = &future
		users.On("FindByEmail", ctx, "ana@example.com").Return(u, nil)

		_, err := svc.Login(ctx, "ana@example.com", "Passw0rd")
		assert.ErrorIs(t, err, ErrAccountLocked)
	})

	t.Run("expired lock resets counter", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		u := active()
		u.LoginAttempts = 5
		u.LockUntil = &past
		users.On("FindByEmail", ctx, "ana@example.com").Return(u, nil)
		users.On("RecordLoginFailure", ctx, "u1", 1, (*time.Time)(nil)).Return(nil)

		_, err := svc.Login(ctx, "ana@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		users.AssertExpectations(t)
	})
}

func TestAuthService_VerifyEmail(t *testing.T) {
	ctx := context.Background()
	later := fixedNow.Add(time.Hour)
	earlier := fixedNow.Add(-time.Hour)

	t.Run("valid token", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		users.On("FindByVerificationToken", ctx, "tok").Return(&model.User{ID: "u1", VerificationExpires: &later}, nil)
		users.On("MarkEmailVerified", ctx, "u1").Return(nil)
		assert.NoError(t, svc.VerifyEmail(ctx, "tok"))
	})

	t.Run("expired token", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		users.On("FindByVerificationToken", ctx, "tok").Return(&model.User{ID: "u1", VerificationExpires: &earlier}, nil)
		assert.ErrorIs(t, svc.VerifyEmail(ctx, "tok"), ErrInvalidToken)
		users.AssertNotCalled(t, "MarkEmailVerified", mock.Anything, mock.Anything)
	})

	t.Run("unknown token", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		users.On("FindByVerificationToken", ctx, "tok").Return(nil, sql.ErrNoRows)
		assert.ErrorIs(t, svc.VerifyEmail(ctx, "tok"), ErrInvalidToken)
	})

	t.Run("empty token", func(t *testing.T) {
		svc, _, _ := newAuthFixture(t)
		assert.ErrorIs(t, svc.VerifyEmail(ctx, ""), ErrInvalidToken)
	})
}

func TestAuthService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	u := &model.User{ID: "u1", Email: "ana@example.com"}

	t.Run("unknown email succeeds silently", func(t *testing.T) {
		svc, users, n := newAuthFixture(t)
		users.On("FindByEmail", ctx, "ghost@example.com").Return(nil, sql.ErrNoRows)
		assert.NoError(t, svc.RequestPasswordReset(ctx, "ghost@example.com"))
		n.AssertNotCalled(t, "PasswordReset", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stores token and emails it", func(t *testing.T) {
		svc, users, n := newAuthFixture(t)
		users.On("FindByEmail", ctx, "ana@example.com").Return(u, nil)
		users.On("SetResetToken", ctx, "u1", mock.AnythingOfType("string"), fixedNow.Add(time.Hour)).Return(nil)
		n.On("PasswordReset", mock.Anything, u, mock.AnythingOfType("string")).Return(nil)
		assert.NoError(t, svc.RequestPasswordReset(ctx, "ana@example.com"))
		n.AssertExpectations(t)
	})

	t.Run("email failure surfaces", func(t *testing.T) {
		svc, users, n := newAuthFixture(t)
		users.On("FindByEmail", ctx, "ana@example.com").Return(u, nil)
		users.On("SetResetToken", ctx, "u1", mock.Anything, mock.Anything).Return(nil)
		n.On("PasswordReset", mock.Anything, u, mock.Anything).Return(errors.New("smtp down"))
		assert.ErrorIs(t, svc.RequestPasswordReset(ctx, "ana@example.com"), ErrEmailDelivery)
	})

	t.Run("reset with valid token", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		later := fixedNow.Add(30 * time.Minute)
		users.On("FindByResetToken", ctx, "tok").Return(&model.User{ID: "u1", ResetExpires: &later}, nil)
		users.On("UpdatePassword", ctx, "u1", mock.MatchedBy(func(h string) bool {
			return auth.CheckPassword(h, "N3wPassword")
		})).Return(nil)
		assert.NoError(t, svc.ResetPassword(ctx, "tok", "N3wPassword"))
		users.AssertExpectations(t)
	})

	t.Run("reset with expired token", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		earlier := fixedNow.Add(-time.Minute)
		users.On("FindByResetToken", ctx, "tok").Return(&model.User{ID: "u1", ResetExpires: &earlier}, nil)
		assert.ErrorIs(t, svc.ResetPassword(ctx, "tok", "N3wPassword"), ErrInvalidToken)
	})

	t.Run("reset with weak password", func(t *testing.T) {
		svc, _, _ := newAuthFixture(t)
		assert.ErrorIs(t, svc.ResetPassword(ctx, "tok", "short"), ErrWeakPassword)
	})
}

func TestAuthService_Admin(t *testing.T) {
	ctx := context.Background()

	t.Run("approve user", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		users.On("SetApproved", ctx, "u1", true).Return(&model.User{ID: "u1", Approved: true}, nil)
		u, err := svc.ApproveUser(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, u.Approved)
	})

	t.Run("approve missing user", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		users.On("SetApproved", ctx, "nope", true).Return(nil, sql.ErrNoRows)
		_, err := svc.ApproveUser(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set unknown role", func(t *testing.T) {
		svc, _, _ := newAuthFixture(t)
		_, err := svc.SetRole(ctx, "u1", "owner")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("list users", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		users.On("List", ctx, repository.PageQuery{Limit: 10, Offset: 0}).
			Return(&repository.PageResult[model.User]{Items: []model.User{{ID: "u1"}}, Total: 1}, nil)
		res, err := svc.ListUsers(ctx, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Total)
	})
}

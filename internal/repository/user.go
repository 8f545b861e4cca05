package repository

import (
	"context"
	"time"

	"postflow/internal/model"
)

// UserRepository defines persistence for user accounts.
type UserRepository interface {
	// Create inserts a user. Returns ErrDuplicateEmail when the email is taken.
	Create(ctx context.Context, user *model.User) (*model.User, error)

	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	FindByVerificationToken(ctx context.Context, token string) (*model.User, error)

	FindByResetToken(ctx context.Context, token string) (*model.User, error)

	List(ctx context.Context, pq PageQuery) (*PageResult[model.User], error)

	SetApproved(ctx context.Context, id string, approved bool) (*model.User, error)

	SetRole(ctx context.Context, id string, role model.Role) (*model.User, error)

	// MarkEmailVerified sets email_verified and clears the verification token.
	MarkEmailVerified(ctx context.Context, id string) error

	SetVerificationToken(ctx context.Context, id, token string, expires time.Time) error

	SetResetToken(ctx context.Context, id, token string, expires time.Time) error

	// UpdatePassword stores a new hash and clears any reset token.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// RecordLoginFailure stores the attempt counter and lock deadline.
	RecordLoginFailure(ctx context.Context, id string, attempts int, lockUntil *time.Time) error

	// RecordLoginSuccess resets attempts and stamps last_login.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
}

// Package service holds the use cases of the pipeline: uploading posts,
// moving them through approval and managing user accounts.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"

	"postflow/internal/model"
)

var tracer = otel.Tracer("postflow/service")

// Notifier sends the emails triggered by account and post events.
type Notifier interface {
	Verification(ctx context.Context, u *model.User, token string) error
	ApprovalRequired(ctx context.Context, u *model.User) error
	PasswordReset(ctx context.Context, u *model.User, token string) error
	PostStatus(ctx context.Context, owner *model.User, p *model.Post) error
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   model.Role
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// PostListResult is the service-level DTO for paginated posts.
type PostListResult struct {
	Items []model.Post `json:"data"`
	Total int          `json:"total"`
}

// UserListResult is the service-level DTO for paginated users.
type UserListResult struct {
	Items []model.User `json:"data"`
	Total int          `json:"total"`
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// notFound maps sql.ErrNoRows to ErrNotFound and wraps anything else.
func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

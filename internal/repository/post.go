package repository

import (
	"context"
	"time"

	"postflow/internal/model"
)

// TransitionStamp holds the audit columns a status transition may set.
// Nil fields are left untouched. Platform is a guard, not a column to set:
// when non-nil the row must also target that platform.
type TransitionStamp struct {
	ApprovedBy       *string
	ClientApprovedBy *string
	PublishedAt      *time.Time
	Platform         *model.Platform
}

// PostRepository defines persistence for posts. No business logic here.
type PostRepository interface {
	// Create inserts a post. Status is always stored as pending.
	Create(ctx context.Context, post *model.Post) (*model.Post, error)

	// FindByID returns a post by its ID.
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// ListByOwner returns the owner's posts, most recent first.
	ListByOwner(ctx context.Context, ownerID string, pq PageQuery) (*PageResult[model.Post], error)

	// ListByStatus returns posts in the given status, oldest first, for review queues.
	ListByStatus(ctx context.Context, status model.PostStatus, pq PageQuery) (*PageResult[model.Post], error)

	// Update applies the editable fields and returns the updated post.
	Update(ctx context.Context, id string, upd model.PostUpdate) (*model.Post, error)

	// TransitionStatus moves a post to `to` only if its current status is one of `from`.
	// It returns sql.ErrNoRows when no row matched the id and expected status.
	TransitionStatus(ctx context.Context, id string, from []model.PostStatus, to model.PostStatus, stamp TransitionStamp) (*model.Post, error)

	// Delete removes a post and returns the deleted row.
	Delete(ctx context.Context, id string) (*model.Post, error)
}

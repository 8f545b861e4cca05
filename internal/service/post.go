package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"postflow/internal/llm"
	"postflow/internal/logger"
	"postflow/internal/model"
	"postflow/internal/repository"
	"postflow/internal/storage"
)

// PostService defines read, edit and delete use cases for posts.
type PostService interface {
	// Get returns a single post by its ID.
	Get(ctx context.Context, id string) (*model.Post, error)

	// ListMine returns the caller's posts, newest first.
	ListMine(ctx context.Context, ownerID string, limit, offset int) (*PostListResult, error)

	// Update edits platform, caption, description or tags. Only the owner or
	// an admin may edit.
	Update(ctx context.Context, actor Actor, id string, upd model.PostUpdate) (*model.Post, error)

	// Delete removes the stored file, then the post. Only the owner or an
	// admin may delete.
	Delete(ctx context.Context, actor Actor, id string) error
}

type postService struct {
	posts repository.PostRepository
	store storage.Storage
	log   *logger.Logger
}

func NewPostService(posts repository.PostRepository, store storage.Storage, log *logger.Logger) PostService {
	return &postService{posts: posts, store: store, log: log.With("posts")}
}

func (s *postService) Get(ctx context.Context, id string) (*model.Post, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	p, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "find post")
	}
	return p, nil
}

func (s *postService) ListMine(ctx context.Context, ownerID string, limit, offset int) (*PostListResult, error) {
	if ownerID == "" {
		return nil, ErrIDRequired
	}
	limit, offset = page(limit, offset)
	res, err := s.posts.ListByOwner(ctx, ownerID, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return &PostListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *postService) owned(ctx context.Context, actor Actor, id string) (*model.Post, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *postService) Update(ctx context.Context, actor Actor, id string, upd model.PostUpdate) (*model.Post, error) {
	if err := validateUpdate(&upd); err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, actor, id); err != nil {
		return nil, err
	}
	p, err := s.posts.Update(ctx, id, upd)
	if err != nil {
		return nil, notFound(err, "update post")
	}
	return p, nil
}

// validateUpdate checks and normalizes the editable fields in place.
func validateUpdate(upd *model.PostUpdate) error {
	if upd.Empty() {
		return invalid("", "nothing to update")
	}
	if upd.Platform != nil {
		p, ok := model.ParsePlatform(string(*upd.Platform))
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidPlatform, *upd.Platform)
		}
		upd.Platform = &p
	}
	if upd.Caption != nil {
		c := strings.TrimSpace(*upd.Caption)
		if c == "" {
			return invalid("caption", "must not be empty")
		}
		if utf8.RuneCountInString(c) > model.MaxCaptionLength {
			return invalid("caption", fmt.Sprintf("must be at most %d characters", model.MaxCaptionLength))
		}
		upd.Caption = &c
	}
	if upd.Description != nil {
		d := strings.TrimSpace(*upd.Description)
		upd.Description = &d
	}
	if upd.Tags != nil {
		upd.Tags = model.Tags(llm.NormalizeTags(upd.Tags))
	}
	return nil
}

func (s *postService) Delete(ctx context.Context, actor Actor, id string) error {
	p, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, p.FileRef); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	if _, err := s.posts.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		s.log.Warn("post_delete_reconcile", err, map[string]any{"post_id": id, "file_ref": p.FileRef})
		return fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	s.log.Info("post_deleted", map[string]any{"post_id": id, "actor_id": actor.UserID})
	return nil
}

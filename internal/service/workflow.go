package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"postflow/internal/logger"
	"postflow/internal/metrics"
	"postflow/internal/model"
	"postflow/internal/repository"
)

// WorkflowService moves posts through review:
// pending -> team_approved -> client_approved -> published, with rejected
// reachable from any non-terminal state.
type WorkflowService interface {
	// Approve records the team approval of a pending post.
	Approve(ctx context.Context, postID, approverID string) (*model.Post, error)

	// ClientApprove records the client approval of a team approved post.
	ClientApprove(ctx context.Context, postID, approverID string) (*model.Post, error)

	// Publish marks a fully approved post as published. A non-empty platform
	// must match the post's platform.
	Publish(ctx context.Context, postID string, platform model.Platform) (*model.Post, error)

	// Reject ends review of a post that is not yet published or rejected.
	Reject(ctx context.Context, postID, actorID string) (*model.Post, error)

	// Queue lists posts waiting in the given status, oldest first.
	Queue(ctx context.Context, status model.PostStatus, limit, offset int) (*PostListResult, error)
}

type workflowService struct {
	posts   repository.PostRepository
	users   repository.UserRepository
	notify  Notifier
	metrics *metrics.Pipeline
	log     *logger.Logger
	now     func() time.Time
}

func NewWorkflowService(posts repository.PostRepository, users repository.UserRepository, n Notifier, m *metrics.Pipeline, log *logger.Logger) WorkflowService {
	return &workflowService{posts: posts, users: users, notify: n, metrics: m, log: log.With("workflow"), now: time.Now}
}

func (s *workflowService) Approve(ctx context.Context, postID, approverID string) (*model.Post, error) {
	return s.transition(ctx, postID, []model.PostStatus{model.StatusPending}, model.StatusTeamApproved,
		repository.TransitionStamp{ApprovedBy: &approverID})
}

func (s *workflowService) ClientApprove(ctx context.Context, postID, approverID string) (*model.Post, error) {
	return s.transition(ctx, postID, []model.PostStatus{model.StatusTeamApproved}, model.StatusClientApproved,
		repository.TransitionStamp{ClientApprovedBy: &approverID})
}

func (s *workflowService) Publish(ctx context.Context, postID string, platform model.Platform) (*model.Post, error) {
	at := s.now().UTC()
	stamp := repository.TransitionStamp{PublishedAt: &at}
	if platform != "" {
		stamp.Platform = &platform
	}
	return s.transition(ctx, postID, []model.PostStatus{model.StatusClientApproved}, model.StatusPublished, stamp)
}

func (s *workflowService) Reject(ctx context.Context, postID, actorID string) (*model.Post, error) {
	p, err := s.transition(ctx, postID, model.NonTerminalStatuses, model.StatusRejected, repository.TransitionStamp{})
	if err == nil {
		s.log.Info("post_rejected", map[string]any{"post_id": p.ID, "actor_id": actorID})
	}
	return p, err
}

func (s *workflowService) Queue(ctx context.Context, status model.PostStatus, limit, offset int) (*PostListResult, error) {
	if status == "" {
		status = model.StatusPending
	}
	if !status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", status))
	}
	limit, offset = page(limit, offset)
	res, err := s.posts.ListByStatus(ctx, status, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list posts by status: %w", err)
	}
	return &PostListResult{Items: res.Items, Total: res.Total}, nil
}

// transition applies a compare-and-swap on the post status. When nothing
// matched, the post is re-read to tell a missing post from a wrong state.
func (s *workflowService) transition(ctx context.Context, postID string, from []model.PostStatus, to model.PostStatus, stamp repository.TransitionStamp) (*model.Post, error) {
	if postID == "" {
		return nil, ErrIDRequired
	}
	ctx, span := tracer.Start(ctx, "workflow.transition", trace.WithAttributes(
		attribute.String("post.id", postID),
		attribute.String("post.status.to", string(to)),
	))
	defer span.End()

	p, err := s.posts.TransitionStatus(ctx, postID, from, to, stamp)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			span.RecordError(err)
			return nil, fmt.Errorf("transition post: %w", err)
		}
		cur, ferr := s.posts.FindByID(ctx, postID)
		if ferr != nil {
			return nil, notFound(ferr, "find post")
		}
		if stamp.Platform != nil && cur.Platform != *stamp.Platform {
			return nil, invalid("platform", fmt.Sprintf("post targets %s, not %s", cur.Platform, *stamp.Platform))
		}
		return nil, rejectTransition(cur.Status, to)
	}

	s.metrics.Transition(to)
	s.log.Info("post_transition", map[string]any{"post_id": p.ID, "to": string(to)})
	if to == model.StatusPublished {
		s.log.Info("post_published", map[string]any{"post_id": p.ID, "platform": string(p.Platform)})
	}
	s.notifyOwner(ctx, p)
	return p, nil
}

func rejectTransition(cur, to model.PostStatus) error {
	if to == model.StatusPublished && (cur == model.StatusPending || cur == model.StatusTeamApproved) {
		return fmt.Errorf("%w: post is %s", ErrNotFullyApproved, cur)
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, to)
}

// notifyOwner emails the post owner. Failures are logged; the transition is
// already committed.
func (s *workflowService) notifyOwner(ctx context.Context, p *model.Post) {
	if s.notify == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	owner, err := s.users.FindByID(ctx, p.UserID)
	if err != nil {
		s.log.Warn("notify_owner_lookup_failed", err, map[string]any{"post_id": p.ID, "user_id": p.UserID})
		return
	}
	if err := s.notify.PostStatus(ctx, owner, p); err != nil {
		s.log.Error("notify_owner_failed", err, map[string]any{"post_id": p.ID, "status": string(p.Status)})
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"postflow/internal/logger"
	"postflow/internal/model"
	"postflow/internal/repository"
	notifyMocks "postflow/internal/notify/mocks"
	repoMocks "postflow/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memPosts is an in-memory PostRepository whose TransitionStatus is atomic.
type memPosts struct {
	mu    sync.Mutex
	posts map[string]model.Post
}

func newMemPosts(posts ...model.Post) *memPosts {
	m := &memPosts{posts: map[string]model.Post{}}
	for _, p := range posts {
		m.posts[p.ID] = p
	}
	return m
}

func (m *memPosts) Create(_ context.Context, p *model.Post) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	cp.Status = model.StatusPending
	m.posts[cp.ID] = cp
	return &cp, nil
}

func (m *memPosts) FindByID(_ context.Context, id string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

// list orders like the postgres queries: by created_at, then id.
func (m *memPosts) list(match func(model.Post) bool, newestFirst bool) *repository.PageResult[model.Post] {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := &repository.PageResult[model.Post]{}
	for _, p := range m.posts {
		if match(p) {
			res.Items = append(res.Items, p)
		}
	}
	slices.SortFunc(res.Items, func(a, b model.Post) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if newestFirst {
			return -c
		}
		return c
	})
	res.Total = len(res.Items)
	return res
}

func (m *memPosts) ListByOwner(_ context.Context, ownerID string, _ repository.PageQuery) (*repository.PageResult[model.Post], error) {
	return m.list(func(p model.Post) bool { return p.UserID == ownerID }, true), nil
}

func (m *memPosts) ListByStatus(_ context.Context, status model.PostStatus, _ repository.PageQuery) (*repository.PageResult[model.Post], error) {
	return m.list(func(p model.Post) bool { return p.Status == status }, false), nil
}

func (m *memPosts) Update(_ context.Context, id string, upd model.PostUpdate) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if upd.Platform != nil {
		p.Platform = *upd.Platform
	}
	if upd.Caption != nil {
		p.Caption = *upd.Caption
	}
	m.posts[id] = p
	return &p, nil
}

func (m *memPosts) TransitionStatus(_ context.Context, id string, from []model.PostStatus, to model.PostStatus, stamp repository.TransitionStamp) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || !slices.Contains(from, p.Status) {
		return nil, sql.ErrNoRows
	}
	if stamp.Platform != nil && p.Platform != *stamp.Platform {
		return nil, sql.ErrNoRows
	}
	p.Status = to
	if stamp.ApprovedBy != nil {
		p.ApprovedBy = stamp.ApprovedBy
	}
	if stamp.ClientApprovedBy != nil {
		p.ClientApprovedBy = stamp.ClientApprovedBy
	}
	if stamp.PublishedAt != nil {
		p.PublishedAt = stamp.PublishedAt
	}
	m.posts[id] = p
	return &p, nil
}

func (m *memPosts) Delete(_ context.Context, id string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	delete(m.posts, id)
	return &p, nil
}

var owner = &model.User{ID: "owner-1", Email: "owner@example.com", Name: "Owner", Approved: true, EmailVerified: true}

func newWorkflow(t *testing.T, posts repository.PostRepository) (WorkflowService, *notifyMocks.MockNotifier) {
	t.Helper()
	users := new(repoMocks.MockUserRepository)
	users.On("FindByID", mock.Anything, owner.ID).Return(owner, nil)
	n := new(notifyMocks.MockNotifier)
	n.On("PostStatus", mock.Anything, owner, mock.Anything).Return(nil)
	return NewWorkflowService(posts, users, n, nil, logger.Nop()), n
}

func TestWorkflow_ConcurrentApprove(t *testing.T) {
	store := newMemPosts(model.Post{ID: "p1", UserID: owner.ID, Status: model.StatusPending})
	svc, n := newWorkflow(t, store)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Approve(context.Background(), "p1", "reviewer")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInvalidTransition):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	n.AssertNumberOfCalls(t, "PostStatus", 1)

	p, err := store.FindByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusTeamApproved, p.Status)
	require.NotNil(t, p.ApprovedBy)
	assert.Equal(t, "reviewer", *p.ApprovedBy)
}

func TestWorkflow_FullFlow(t *testing.T) {
	store := newMemPosts(model.Post{ID: "p1", UserID: owner.ID, Platform: model.PlatformLinkedIn, Status: model.StatusPending})
	svc, n := newWorkflow(t, store)
	ctx := context.Background()

	p, err := svc.Approve(ctx, "p1", "team")
	require.NoError(t, err)
	assert.Equal(t, model.StatusTeamApproved, p.Status)

	p, err = svc.ClientApprove(ctx, "p1", "client")
	require.NoError(t, err)
	assert.Equal(t, model.StatusClientApproved, p.Status)
	assert.Equal(t, "client", *p.ClientApprovedBy)

	p, err = svc.Publish(ctx, "p1", model.PlatformLinkedIn)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, p.Status)
	require.NotNil(t, p.PublishedAt)
	assert.WithinDuration(t, time.Now(), *p.PublishedAt, time.Minute)

	n.AssertNumberOfCalls(t, "PostStatus", 3)
}

func TestWorkflow_PublishOrdering(t *testing.T) {
	tests := []struct {
		status  model.PostStatus
		wantErr error
	}{
		{model.StatusPending, ErrNotFullyApproved},
		{model.StatusTeamApproved, ErrNotFullyApproved},
		{model.StatusClientApproved, nil},
		{model.StatusPublished, ErrInvalidTransition},
		{model.StatusRejected, ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			store := newMemPosts(model.Post{ID: "p1", UserID: owner.ID, Platform: model.PlatformTwitter, Status: tt.status})
			svc, _ := newWorkflow(t, store)

			p, err := svc.Publish(context.Background(), "p1", "")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				cur, _ := store.FindByID(context.Background(), "p1")
				assert.Equal(t, tt.status, cur.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.StatusPublished, p.Status)
		})
	}
}

func TestWorkflow_Transitions(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		status  model.PostStatus
		run     func(WorkflowService) (*model.Post, error)
		wantErr error
		want    model.PostStatus
	}{
		{
			name:    "approve team approved post",
			status:  model.StatusTeamApproved,
			run:     func(s WorkflowService) (*model.Post, error) { return s.Approve(ctx, "p1", "r") },
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "client approve pending post",
			status:  model.StatusPending,
			run:     func(s WorkflowService) (*model.Post, error) { return s.ClientApprove(ctx, "p1", "c") },
			wantErr: ErrInvalidTransition,
		},
		{
			name:   "reject pending",
			status: model.StatusPending,
			run:    func(s WorkflowService) (*model.Post, error) { return s.Reject(ctx, "p1", "r") },
			want:   model.StatusRejected,
		},
		{
			name:   "reject client approved",
			status: model.StatusClientApproved,
			run:    func(s WorkflowService) (*model.Post, error) { return s.Reject(ctx, "p1", "r") },
			want:   model.StatusRejected,
		},
		{
			name:    "reject published",
			status:  model.StatusPublished,
			run:     func(s WorkflowService) (*model.Post, error) { return s.Reject(ctx, "p1", "r") },
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "approve missing post",
			status:  model.StatusPending,
			run:     func(s WorkflowService) (*model.Post, error) { return s.Approve(ctx, "nope", "r") },
			wantErr: ErrNotFound,
		},
		{
			name:    "publish to another platform",
			status:  model.StatusClientApproved,
			run:     func(s WorkflowService) (*model.Post, error) { return s.Publish(ctx, "p1", model.PlatformFacebook) },
			wantErr: ErrValidation,
		},
		{
			name:    "empty id",
			status:  model.StatusPending,
			run:     func(s WorkflowService) (*model.Post, error) { return s.Approve(ctx, "", "r") },
			wantErr: ErrIDRequired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemPosts(model.Post{ID: "p1", UserID: owner.ID, Platform: model.PlatformTwitter, Status: tt.status})
			svc, _ := newWorkflow(t, store)

			p, err := tt.run(svc)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Status)
		})
	}
}

func TestWorkflow_PublishGuardsPlatformInSwap(t *testing.T) {
	posts := new(repoMocks.MockPostRepository)
	platform := model.PlatformTwitter
	posts.On("TransitionStatus", mock.Anything, "p1", []model.PostStatus{model.StatusClientApproved}, model.StatusPublished,
		mock.MatchedBy(func(st repository.TransitionStamp) bool {
			return st.Platform != nil && *st.Platform == platform && st.PublishedAt != nil
		})).
		Return(&model.Post{ID: "p1", UserID: owner.ID, Platform: platform, Status: model.StatusPublished}, nil)
	users := new(repoMocks.MockUserRepository)
	users.On("FindByID", mock.Anything, owner.ID).Return(owner, nil)
	n := new(notifyMocks.MockNotifier)
	n.On("PostStatus", mock.Anything, owner, mock.Anything).Return(nil)

	svc := NewWorkflowService(posts, users, n, nil, logger.Nop())
	p, err := svc.Publish(context.Background(), "p1", platform)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, p.Status)
	posts.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestWorkflow_PublishAfterPlatformEdit(t *testing.T) {
	ctx := context.Background()
	store := newMemPosts(model.Post{ID: "p1", UserID: owner.ID, Platform: model.PlatformTwitter, Status: model.StatusClientApproved})
	svc, _ := newWorkflow(t, store)

	facebook := model.PlatformFacebook
	_, err := store.Update(ctx, "p1", model.PostUpdate{Platform: &facebook})
	require.NoError(t, err)

	_, err = svc.Publish(ctx, "p1", model.PlatformTwitter)
	assert.ErrorIs(t, err, ErrValidation)
	cur, _ := store.FindByID(ctx, "p1")
	assert.Equal(t, model.StatusClientApproved, cur.Status)
	assert.Nil(t, cur.PublishedAt)

	p, err := svc.Publish(ctx, "p1", model.PlatformFacebook)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, p.Status)
}

func TestWorkflow_NotificationFailureKeepsTransition(t *testing.T) {
	store := newMemPosts(model.Post{ID: "p1", UserID: owner.ID, Status: model.StatusPending})
	users := new(repoMocks.MockUserRepository)
	users.On("FindByID", mock.Anything, owner.ID).Return(owner, nil)
	n := new(notifyMocks.MockNotifier)
	n.On("PostStatus", mock.Anything, owner, mock.Anything).Return(errors.New("smtp down"))

	svc := NewWorkflowService(store, users, n, nil, logger.Nop())
	p, err := svc.Approve(context.Background(), "p1", "r")
	require.NoError(t, err)
	assert.Equal(t, model.StatusTeamApproved, p.Status)

	cur, _ := store.FindByID(context.Background(), "p1")
	assert.Equal(t, model.StatusTeamApproved, cur.Status)
}

func TestWorkflow_RepositoryError(t *testing.T) {
	posts := new(repoMocks.MockPostRepository)
	posts.On("TransitionStatus", mock.Anything, "p1", mock.Anything, model.StatusTeamApproved, mock.Anything).
		Return(nil, errors.New("connection reset"))
	svc := NewWorkflowService(posts, new(repoMocks.MockUserRepository), nil, nil, logger.Nop())

	_, err := svc.Approve(context.Background(), "p1", "r")
	assert.EqualError(t, err, "transition post: connection reset")
}

func TestWorkflow_Queue(t *testing.T) {
	store := newMemPosts(
		model.Post{ID: "p1", Status: model.StatusPending},
		model.Post{ID: "p2", Status: model.StatusTeamApproved},
	)
	svc, _ := newWorkflow(t, store)

	res, err := svc.Queue(context.Background(), "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, "p1", res.Items[0].ID)

	_, err = svc.Queue(context.Background(), "archived", 10, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

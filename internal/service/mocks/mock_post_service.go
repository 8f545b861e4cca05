package mocks

import (
	"context"

	"postflow/internal/model"
	"postflow/internal/service"

	"github.com/stretchr/testify/mock"
)

func post(args mock.Arguments) (*model.Post, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func postList(args mock.Arguments) (*service.PostListResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PostListResult), args.Error(1)
}

type MockPostService struct {
	mock.Mock
}

func (m *MockPostService) Get(ctx context.Context, id string) (*model.Post, error) {
	return post(m.Called(ctx, id))
}

func (m *MockPostService) ListMine(ctx context.Context, ownerID string, limit, offset int) (*service.PostListResult, error) {
	return postList(m.Called(ctx, ownerID, limit, offset))
}

func (m *MockPostService) Update(ctx context.Context, actor service.Actor, id string, upd model.PostUpdate) (*model.Post, error) {
	return post(m.Called(ctx, actor, id, upd))
}

func (m *MockPostService) Delete(ctx context.Context, actor service.Actor, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

type MockWorkflowService struct {
	mock.Mock
}

func (m *MockWorkflowService) Approve(ctx context.Context, postID, approverID string) (*model.Post, error) {
	return post(m.Called(ctx, postID, approverID))
}

func (m *MockWorkflowService) ClientApprove(ctx context.Context, postID, approverID string) (*model.Post, error) {
	return post(m.Called(ctx, postID, approverID))
}

func (m *MockWorkflowService) Publish(ctx context.Context, postID string, platform model.Platform) (*model.Post, error) {
	return post(m.Called(ctx, postID, platform))
}

func (m *MockWorkflowService) Reject(ctx context.Context, postID, actorID string) (*model.Post, error) {
	return post(m.Called(ctx, postID, actorID))
}

func (m *MockWorkflowService) Queue(ctx context.Context, status model.PostStatus, limit, offset int) (*service.PostListResult, error) {
	return postList(m.Called(ctx, status, limit, offset))
}

type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) Upload(ctx context.Context, in service.UploadInput) (*model.Post, error) {
	return post(m.Called(ctx, in))
}

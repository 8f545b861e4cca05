package mocks

import (
	"context"

	"postflow/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Verification(ctx context.Context, u *model.User, token string) error {
	return m.Called(ctx, u, token).Error(0)
}

func (m *MockNotifier) ApprovalRequired(ctx context.Context, u *model.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockNotifier) PasswordReset(ctx context.Context, u *model.User, token string) error {
	return m.Called(ctx, u, token).Error(0)
}

func (m *MockNotifier) PostStatus(ctx context.Context, owner *model.User, p *model.Post) error {
	return m.Called(ctx, owner, p).Error(0)
}

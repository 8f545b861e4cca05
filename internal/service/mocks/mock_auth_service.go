package mocks

import (
	"context"

	"postflow/internal/model"
	"postflow/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) user(args mock.Arguments) (*model.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockAuthService) Register(ctx context.Context, in service.RegisterInput) (*model.User, error) {
	return m.user(m.Called(ctx, in))
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*service.LoginResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoginResult), args.Error(1)
}

func (m *MockAuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	return m.user(m.Called(ctx, userID))
}

func (m *MockAuthService) ApproveUser(ctx context.Context, userID string) (*model.User, error) {
	return m.user(m.Called(ctx, userID))
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockAuthService) RequestPasswordReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return m.Called(ctx, token, newPassword).Error(0)
}

func (m *MockAuthService) ListUsers(ctx context.Context, limit, offset int) (*service.UserListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UserListResult), args.Error(1)
}

func (m *MockAuthService) SetRole(ctx context.Context, userID string, role model.Role) (*model.User, error) {
	return m.user(m.Called(ctx, userID, role))
}

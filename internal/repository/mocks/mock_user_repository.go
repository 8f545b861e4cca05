package mocks

import (
	"context"
	"time"

	"postflow/internal/model"
	"postflow/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) user(args mock.Arguments) (*model.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	return m.user(m.Called(ctx, user))
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.user(m.Called(ctx, email))
}

func (m *MockUserRepository) FindByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	return m.user(m.Called(ctx, token))
}

func (m *MockUserRepository) FindByResetToken(ctx context.Context, token string) (*model.User, error) {
	return m.user(m.Called(ctx, token))
}

func (m *MockUserRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.User], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.User]), args.Error(1)
}

func (m *MockUserRepository) SetApproved(ctx context.Context, id string, approved bool) (*model.User, error) {
	return m.user(m.Called(ctx, id, approved))
}

func (m *MockUserRepository) SetRole(ctx context.Context, id string, role model.Role) (*model.User, error) {
	return m.user(m.Called(ctx, id, role))
}

func (m *MockUserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserRepository) SetVerificationToken(ctx context.Context, id, token string, expires time.Time) error {
	return m.Called(ctx, id, token, expires).Error(0)
}

func (m *MockUserRepository) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	return m.Called(ctx, id, token, expires).Error(0)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockUserRepository) RecordLoginFailure(ctx context.Context, id string, attempts int, lockUntil *time.Time) error {
	return m.Called(ctx, id, attempts, lockUntil).Error(0)
}

func (m *MockUserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

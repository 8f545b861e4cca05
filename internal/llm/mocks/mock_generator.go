package mocks

import (
	"context"

	"postflow/internal/llm"
	"postflow/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Name() model.Provider {
	args := m.Called()
	return args.Get(0).(model.Provider)
}

func (m *MockGenerator) Generate(ctx context.Context, req llm.Request) (any, error) {
	args := m.Called(ctx, req)
	return args.Get(0), args.Error(1)
}

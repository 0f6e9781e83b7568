package llm

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tagging-mcp/internal/provider"
)

// MockClient is a mock implementation of Client using testify/mock.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Classify(ctx context.Context, req Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// MockFactory records factory calls and hands out a fixed client.
type MockFactory struct {
	mock.Mock
}

func (m *MockFactory) Build(ctx context.Context, cfg provider.Config) (Client, error) {
	args := m.Called(ctx, cfg)
	client, _ := args.Get(0).(Client)
	return client, args.Error(1)
}

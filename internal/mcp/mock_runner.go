package mcp

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
)

// MockRunner is a mock implementation of Runner using testify/mock.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Call(ctx context.Context, name string, args json.RawMessage) (any, bool) {
	a := m.Called(ctx, name, args)
	return a.Get(0), a.Bool(1)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/turtacn/mfagate/internal/domain/service"
)

// MockRemoteVerifier is a mock implementation of service.RemoteVerifier
type MockRemoteVerifier struct {
	mock.Mock
}

func (m *MockRemoteVerifier) Enabled() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockRemoteVerifier) EnrollmentTokenCount(ctx context.Context, username string) (int, error) {
	args := m.Called(ctx, username)
	return args.Int(0), args.Error(1)
}

func (m *MockRemoteVerifier) RolloutSecret(ctx context.Context, username, tokenType string) (string, error) {
	args := m.Called(ctx, username, tokenType)
	return args.String(0), args.Error(1)
}

func (m *MockRemoteVerifier) Validate(ctx context.Context, username, code string) (*service.ValidationResult, error) {
	args := m.Called(ctx, username, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ValidationResult), args.Error(1)
}

func (m *MockRemoteVerifier) PollTransaction(ctx context.Context, transactionID string) (bool, error) {
	args := m.Called(ctx, transactionID)
	return args.Bool(0), args.Error(1)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/turtacn/mfagate/internal/domain/models"
)

// MockSecretStore is a mock implementation of repository.SecretStore
type MockSecretStore struct {
	mock.Mock
}

func (m *MockSecretStore) Get(ctx context.Context, username string) (*models.UserAttributes, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserAttributes), args.Error(1)
}

func (m *MockSecretStore) Set(ctx context.Context, username string, attrs *models.UserAttributes) error {
	args := m.Called(ctx, username, attrs)
	return args.Error(0)
}

func (m *MockSecretStore) CompareAndSwapTransaction(ctx context.Context, username string, expected, next models.TransactionState) (bool, error) {
	args := m.Called(ctx, username, expected, next)
	return args.Bool(0), args.Error(1)
}

func (m *MockSecretStore) Delete(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

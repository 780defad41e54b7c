// Package memory provides in-process implementations of the storage interfaces, used by tests and
// single-node deployments.
package memory

import (
	"context"
	"sync"

	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/internal/domain/repository"
	"github.com/turtacn/mfagate/pkg/errors"
)

// SecretStore keeps attributes in a map guarded by a mutex.
type SecretStore struct {
	mu       sync.Mutex
	users    map[string]models.UserAttributes
	readOnly bool
}

var _ repository.SecretStore = (*SecretStore)(nil)

// NewSecretStore creates an empty writable store.
func NewSecretStore() *SecretStore {
	return &SecretStore{users: make(map[string]models.UserAttributes)}
}

// SetReadOnly makes every write fail with ErrAttributeStorageUnsupported.
func (s *SecretStore) SetReadOnly(readOnly bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readOnly = readOnly
}

func (s *SecretStore) Get(_ context.Context, username string) (*models.UserAttributes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs := s.users[username]
	return &attrs, nil
}

func (s *SecretStore) Set(_ context.Context, username string, attrs *models.UserAttributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return errors.ErrAttributeStorageUnsupported
	}
	s.users[username] = *attrs
	return nil
}

func (s *SecretStore) CompareAndSwapTransaction(_ context.Context, username string, expected, next models.TransactionState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return false, errors.ErrAttributeStorageUnsupported
	}
	attrs := s.users[username]
	if !attrs.Transaction.Equal(expected) {
		return false, nil
	}
	attrs.Transaction = next
	s.users[username] = attrs
	return true, nil
}

func (s *SecretStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return errors.ErrAttributeStorageUnsupported
	}
	delete(s.users, username)
	return nil
}

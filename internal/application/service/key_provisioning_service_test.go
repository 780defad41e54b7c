package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/mfagate/internal/domain/models"
	domainservice "github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/internal/domain/service/mocks"
	"github.com/turtacn/mfagate/internal/infrastructure/memory"
	"github.com/turtacn/mfagate/pkg/constants"
	"github.com/turtacn/mfagate/pkg/errors"
	"github.com/turtacn/mfagate/pkg/logger"
)

func newKeyService(store *memory.SecretStore, remote domainservice.RemoteVerifier) KeyProvisioningService {
	return NewKeyProvisioningService(store, remote, 20, logger.NewNoopLogger(), nil)
}

func TestObtainSecret_GeneratesAndPersists(t *testing.T) {
	store := memory.NewSecretStore()
	svc := newKeyService(store, nil)

	secret, tx, err := svc.ObtainSecret(context.Background(), "alice", models.NoRemoteService())
	require.NoError(t, err)
	require.NotNil(t, secret)
	assert.Len(t, secret.Secret, 20)
	assert.False(t, secret.Confirmed)
	assert.Equal(t, models.TransactionAbsent, tx.Status)

	attrs, err := store.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, secret.Encoded(), attrs.EncodedSecret)

	again, _, err := svc.ObtainSecret(context.Background(), "alice", models.NoRemoteService())
	require.NoError(t, err)
	assert.Equal(t, secret.Secret, again.Secret)
}

func TestObtainSecret_ReturnsStoredTransaction(t *testing.T) {
	store := memory.NewSecretStore()
	stored := &models.OneTimeSecret{Username: "alice", Secret: testSecret, Confirmed: true}
	require.NoError(t, store.Set(context.Background(), "alice", models.NewUserAttributes(stored, models.PendingTransaction("tx-9"))))

	secret, tx, err := newKeyService(store, nil).ObtainSecret(context.Background(), "alice", models.EnrollmentFromTokenCount(2))
	require.NoError(t, err)
	assert.True(t, secret.Confirmed)
	assert.Equal(t, testSecret, secret.Secret)
	assert.True(t, tx.Equal(models.PendingTransaction("tx-9")))
}

func TestObtainSecret_RemoteRolloutReplacesStoredSecret(t *testing.T) {
	store := memory.NewSecretStore()
	stored := &models.OneTimeSecret{Username: "alice", Secret: testSecret}
	require.NoError(t, store.Set(context.Background(), "alice", models.NewUserAttributes(stored, models.TimedOutTransaction())))

	remote := new(mocks.MockRemoteVerifier)
	remote.On("Enabled").Return(true)
	remote.On("RolloutSecret", mock.Anything, "alice", constants.TokenTypeTOTP).Return("gezdgnbvgy3tqojq", nil)

	secret, tx, err := newKeyService(store, remote).ObtainSecret(context.Background(), "alice", models.EnrollmentFromTokenCount(0))
	require.NoError(t, err)
	assert.Equal(t, "GEZDGNBVGY3TQOJQ", secret.Encoded())
	assert.True(t, tx.IsTimedOut())

	attrs, err := store.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "GEZDGNBVGY3TQOJQ", attrs.EncodedSecret)
	assert.True(t, attrs.Transaction.IsTimedOut())
}

func TestObtainSecret_FailedRolloutFallsBackToStoredSecret(t *testing.T) {
	store := memory.NewSecretStore()
	stored := &models.OneTimeSecret{Username: "alice", Secret: testSecret}
	require.NoError(t, store.Set(context.Background(), "alice", models.NewUserAttributes(stored, models.NoTransaction())))

	remote := new(mocks.MockRemoteVerifier)
	remote.On("Enabled").Return(true)
	remote.On("RolloutSecret", mock.Anything, "alice", constants.TokenTypeTOTP).Return("", errors.ErrRemoteUnavailable)

	secret, _, err := newKeyService(store, remote).ObtainSecret(context.Background(), "alice", models.EnrollmentFromTokenCount(0))
	require.NoError(t, err)
	assert.Equal(t, testSecret, secret.Secret)
}

func TestObtainSecret_NoRolloutWhenEnrolled(t *testing.T) {
	store := memory.NewSecretStore()
	remote := new(mocks.MockRemoteVerifier)
	remote.On("Enabled").Return(true)

	secret, _, err := newKeyService(store, remote).ObtainSecret(context.Background(), "alice", models.EnrollmentFromTokenCount(1))
	require.NoError(t, err)
	require.NotNil(t, secret)
	remote.AssertNotCalled(t, "RolloutSecret", mock.Anything, mock.Anything, mock.Anything)
}

func TestObtainSecret_MalformedSecret(t *testing.T) {
	store := memory.NewSecretStore()
	require.NoError(t, store.Set(context.Background(), "alice", &models.UserAttributes{EncodedSecret: "%%%"}))

	secret, _, err := newKeyService(store, nil).ObtainSecret(context.Background(), "alice", models.NoRemoteService())
	assert.NoError(t, err)
	assert.Nil(t, secret)
}

func TestObtainSecret_ReadOnlyStore(t *testing.T) {
	store := memory.NewSecretStore()
	store.SetReadOnly(true)

	secret, _, err := newKeyService(store, nil).ObtainSecret(context.Background(), "alice", models.NoRemoteService())
	assert.NoError(t, err)
	assert.Nil(t, secret)
}

func TestObtainSecret_WriteFailure(t *testing.T) {
	store := new(mocks.MockSecretStore)
	store.On("Get", mock.Anything, "alice").Return(&models.UserAttributes{}, nil)
	store.On("Set", mock.Anything, "alice", mock.Anything).Return(errors.ErrServiceUnavailable)

	svc := NewKeyProvisioningService(store, nil, 20, logger.NewNoopLogger(), nil)
	secret, _, err := svc.ObtainSecret(context.Background(), "alice", models.NoRemoteService())
	assert.Error(t, err)
	assert.Nil(t, secret)
}

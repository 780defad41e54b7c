package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/internal/domain/service/mocks"
	"github.com/turtacn/mfagate/internal/infrastructure/memory"
	"github.com/turtacn/mfagate/pkg/constants"
	"github.com/turtacn/mfagate/pkg/errors"
	"github.com/turtacn/mfagate/pkg/logger"
)

func TestAdmin_Status(t *testing.T) {
	store := memory.NewSecretStore()
	secret := &models.OneTimeSecret{Username: "alice", Secret: testSecret, Confirmed: true}
	require.NoError(t, store.Set(context.Background(), "alice", models.NewUserAttributes(secret, models.PendingTransaction("tx-1"))))

	svc := NewAdminService(store, nil, nil, logger.NewNoopLogger())
	status, err := svc.Status(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, status.HasSecret)
	assert.True(t, status.Confirmed)
	assert.Equal(t, "pending(tx-1)", status.Transaction)

	status, err = svc.Status(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, status.HasSecret)
	assert.Equal(t, "absent", status.Transaction)

	_, err = svc.Status(context.Background(), "")
	assert.Error(t, err)
}

func TestAdmin_ResetEnrollment(t *testing.T) {
	store := memory.NewSecretStore()
	secret := &models.OneTimeSecret{Username: "alice", Secret: testSecret, Confirmed: true}
	require.NoError(t, store.Set(context.Background(), "alice", models.NewUserAttributes(secret, models.NoTransaction())))

	sink := new(mocks.MockAuditSink)
	sink.On("Publish", mock.Anything, mock.MatchedBy(func(e *models.AuditEvent) bool {
		return e.EventType == constants.AuditEventEnrollmentReset && e.Username == "alice"
	})).Return(nil).Once()

	limiter := new(mocks.MockCodeAttemptLimiter)
	limiter.On("Reset", mock.Anything, "alice").Return(nil).Once()

	svc := NewAdminService(store, limiter, sink, logger.NewNoopLogger())
	require.NoError(t, svc.ResetEnrollment(context.Background(), "alice"))

	attrs, err := store.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, attrs.HasSecret())
	assert.False(t, attrs.Confirmed)
	sink.AssertExpectations(t)
	limiter.AssertExpectations(t)
}

func TestAdmin_ResetEnrollmentReadOnly(t *testing.T) {
	store := memory.NewSecretStore()
	store.SetReadOnly(true)

	err := NewAdminService(store, nil, nil, logger.NewNoopLogger()).ResetEnrollment(context.Background(), "alice")
	assert.True(t, errors.Is(err, errors.ErrAttributeStorageUnsupported))
}

func TestAdmin_ClearTransaction(t *testing.T) {
	store := memory.NewSecretStore()
	secret := &models.OneTimeSecret{Username: "alice", Secret: testSecret}
	require.NoError(t, store.Set(context.Background(), "alice", models.NewUserAttributes(secret, models.TimedOutTransaction())))
	svc := NewAdminService(store, nil, nil, logger.NewNoopLogger())

	cleared, err := svc.ClearTransaction(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, cleared)

	attrs, err := store.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionAbsent, attrs.Transaction.Status)
	assert.True(t, attrs.HasSecret())

	cleared, err = svc.ClearTransaction(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, cleared)
}

func TestAdmin_ClearTransactionStoreFailure(t *testing.T) {
	store := new(mocks.MockSecretStore)
	store.On("Get", mock.Anything, "alice").Return(nil, errors.New("connection refused"))

	_, err := NewAdminService(store, nil, nil, logger.NewNoopLogger()).ClearTransaction(context.Background(), "alice")
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))
}

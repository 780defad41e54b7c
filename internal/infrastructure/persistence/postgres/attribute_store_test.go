package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/turtacn/mfagate/internal/config"
	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/pkg/errors"
	"github.com/turtacn/mfagate/pkg/logger"
)

func newTestStore(t *testing.T) *AttributeStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	store := NewAttributeStore(db, logger.NewNoopLogger(), nil)
	require.NoError(t, store.AutoMigrate(context.Background()))
	return store
}

func TestAttributeStore_GetMissingUser(t *testing.T) {
	store := newTestStore(t)

	attrs, err := store.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, attrs.HasSecret())
	assert.Equal(t, models.NoTransaction(), attrs.Transaction)
}

func TestAttributeStore_SetIsUpsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "alice", &models.UserAttributes{
		EncodedSecret: "GEZDGNBV",
		Transaction:   models.PendingTransaction("tx-1"),
	}))
	require.NoError(t, store.Set(ctx, "alice", &models.UserAttributes{
		EncodedSecret: "MFRGGZDF",
		Confirmed:     true,
		Transaction:   models.NoTransaction(),
	}))

	attrs, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "MFRGGZDF", attrs.EncodedSecret)
	assert.True(t, attrs.Confirmed)
	assert.Equal(t, models.NoTransaction(), attrs.Transaction)
}

func TestAttributeStore_CompareAndSwapTransaction(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Set(ctx, "alice", &models.UserAttributes{
		EncodedSecret: "GEZDGNBV",
		Transaction:   models.PendingTransaction("tx-1"),
	}))

	ok, err := store.CompareAndSwapTransaction(ctx, "alice", models.PendingTransaction("tx-other"), models.NoTransaction())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.CompareAndSwapTransaction(ctx, "alice", models.PendingTransaction("tx-1"), models.TimedOutTransaction())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CompareAndSwapTransaction(ctx, "alice", models.PendingTransaction("tx-1"), models.NoTransaction())
	require.NoError(t, err)
	assert.False(t, ok)

	attrs, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, attrs.Transaction.IsTimedOut())
	assert.Equal(t, "GEZDGNBV", attrs.EncodedSecret)
}

func TestAttributeStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Set(ctx, "alice", &models.UserAttributes{EncodedSecret: "GEZDGNBV", Confirmed: true}))

	require.NoError(t, store.Delete(ctx, "alice"))

	attrs, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, attrs.HasSecret())
	assert.False(t, attrs.Confirmed)
}

func TestIsUnsupportedWrite(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"insufficient privilege", &pgconn.PgError{Code: "42501"}, true},
		{"read only transaction", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "25006"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"sqlite readonly", stderrors.New("attempt to write a readonly database"), true},
		{"connection refused", stderrors.New("dial tcp: connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnsupportedWrite(tt.err))
		})
	}
}

func TestMapWriteError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.mapWriteError(ctx, "alice", &pgconn.PgError{Code: "42501"})
	assert.True(t, errors.Is(err, errors.ErrAttributeStorageUnsupported))

	err = store.mapWriteError(ctx, "alice", stderrors.New("disk full"))
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))
}

func TestDBConnection_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())}
	conn, err := NewDBConnection(context.Background(), "sqlite", cfg, logger.NewNoopLogger())
	require.NoError(t, err)
	defer conn.Close()

	health, err := conn.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health["status"])

	_, err = NewDBConnection(context.Background(), "oracle", cfg, logger.NewNoopLogger())
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

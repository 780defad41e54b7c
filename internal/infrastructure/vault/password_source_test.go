package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/mfagate/internal/config"
	"github.com/turtacn/mfagate/pkg/errors"
	"github.com/turtacn/mfagate/pkg/logger"
)

func newFakeVault(t *testing.T, data map[string]interface{}, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "/v1/secret/data/mfagate/privacyidea", r.URL.Path)
		assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		if data == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data":     data,
				"metadata": map[string]interface{}{"version": 1},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPasswordSource_ReadsAndCaches(t *testing.T) {
	var hits int32
	srv := newFakeVault(t, map[string]interface{}{"password": "s3cret"}, &hits)

	src, err := NewPasswordSource(&config.VaultConfig{Address: srv.URL, Token: "test-token", MountPath: "secret"},
		"mfagate/privacyidea", logger.NewNoopLogger(), nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		password, err := src.Password(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "s3cret", password)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestPasswordSource_MissingKey(t *testing.T) {
	var hits int32
	srv := newFakeVault(t, map[string]interface{}{"username": "svc"}, &hits)

	src, err := NewPasswordSource(&config.VaultConfig{Address: srv.URL, Token: "test-token"},
		"mfagate/privacyidea", logger.NewNoopLogger(), nil)
	require.NoError(t, err)

	_, err = src.Password(context.Background())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestPasswordSource_MissingSecret(t *testing.T) {
	var hits int32
	srv := newFakeVault(t, nil, &hits)

	src, err := NewPasswordSource(&config.VaultConfig{Address: srv.URL, Token: "test-token"},
		"mfagate/privacyidea", logger.NewNoopLogger(), nil)
	require.NoError(t, err)

	_, err = src.Password(context.Background())
	assert.Error(t, err)
}

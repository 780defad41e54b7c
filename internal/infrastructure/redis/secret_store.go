package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/internal/domain/repository"
	"github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/pkg/constants"
	mfaerrors "github.com/turtacn/mfagate/pkg/errors"
)

const userKeyPrefix = "mfagate:user:"

// redisSecretStore keeps the attributes of each user in one hash.
type redisSecretStore struct {
	client  redis.UniversalClient
	metrics service.Metrics
}

// NewSecretStore creates a Redis-backed SecretStore.
func NewSecretStore(client redis.UniversalClient, metrics service.Metrics) repository.SecretStore {
	if metrics == nil {
		metrics = service.NoopMetrics{}
	}
	return &redisSecretStore{client: client, metrics: metrics}
}

func userKey(username string) string {
	return userKeyPrefix + username
}

// Get reads the attribute hash of username. A missing hash yields zero attributes.
func (s *redisSecretStore) Get(ctx context.Context, username string) (attrs *models.UserAttributes, err error) {
	defer s.observe("get", time.Now(), &err)

	values, err := s.client.HGetAll(ctx, userKey(username)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read attributes from redis: %w", err)
	}
	return models.UserAttributesFromMap(values), nil
}

// Set writes secret, confirmation flag and transaction marker in one MULTI/EXEC.
func (s *redisSecretStore) Set(ctx context.Context, username string, attrs *models.UserAttributes) (err error) {
	defer s.observe("set", time.Now(), &err)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, userKey(username), toArgs(attrs.ToMap())...)
	if _, err := pipe.Exec(ctx); err != nil {
		return mapWriteError(err)
	}
	return nil
}

// CompareAndSwapTransaction swaps the transaction marker under WATCH so that concurrent writers
// observing the same pending id cannot both win.
func (s *redisSecretStore) CompareAndSwapTransaction(ctx context.Context, username string, expected, next models.TransactionState) (swapped bool, err error) {
	defer s.observe("cas", time.Now(), &err)

	key := userKey(username)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		values, err := tx.HMGet(ctx, key, constants.AttributeTransactionState, constants.AttributeTransactionID).Result()
		if err != nil {
			return err
		}

		current := models.UserAttributesFromMap(map[string]string{
			constants.AttributeTransactionState: asString(values[0]),
			constants.AttributeTransactionID:    asString(values[1]),
		}).Transaction
		if !current.Equal(expected) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				constants.AttributeTransactionState, next.Status.String(),
				constants.AttributeTransactionID, next.ID,
			)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		// Another writer touched the hash between WATCH and EXEC.
		return false, nil
	}
	if err != nil {
		return false, mapWriteError(err)
	}
	return swapped, nil
}

// Delete removes every attribute of username.
func (s *redisSecretStore) Delete(ctx context.Context, username string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	if err := s.client.Del(ctx, userKey(username)).Err(); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *redisSecretStore) observe(op string, start time.Time, err *error) {
	s.metrics.RecordStoreOperation("redis_"+op, time.Since(start), *err)
}

// mapWriteError turns replica and ACL refusals into ErrAttributeStorageUnsupported.
func mapWriteError(err error) error {
	msg := err.Error()
	if strings.HasPrefix(msg, "READONLY") || strings.HasPrefix(msg, "NOPERM") {
		return mfaerrors.Wrap(err, mfaerrors.ErrAttributeStorageUnsupported)
	}
	return fmt.Errorf("failed to write attributes to redis: %w", err)
}

func toArgs(m map[string]string) []interface{} {
	args := make([]interface{}, 0, len(m)*2)
	for k, v := range m {
		args = append(args, k, v)
	}
	return args
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/mfagate/internal/domain/service"
)

type codeUsageTracker struct{ rdb redis.UniversalClient }

// NewCodeUsageTracker creates a tracker that remembers accepted codes with SETNX and a TTL.
func NewCodeUsageTracker(rdb redis.UniversalClient) service.CodeUsageTracker {
	return &codeUsageTracker{rdb: rdb}
}

func usedCodeKey(username, code string) string {
	sum := sha256.Sum256([]byte(username + "\x00" + code))
	return fmt.Sprintf("mfagate:otp-used:%s", hex.EncodeToString(sum[:]))
}

func (t *codeUsageTracker) MarkUsed(ctx context.Context, username, code string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	ok, err := t.rdb.SetNX(ctx, usedCodeKey(username, code), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record code usage: %w", err)
	}
	return ok, nil
}

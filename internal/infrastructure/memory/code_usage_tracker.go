package memory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/turtacn/mfagate/internal/domain/service"
)

// CodeUsageTracker remembers accepted codes in a go-cache with per-entry expiry.
type CodeUsageTracker struct {
	cache *cache.Cache
}

var _ service.CodeUsageTracker = (*CodeUsageTracker)(nil)

// NewCodeUsageTracker creates a tracker whose expired entries are swept every cleanupInterval.
func NewCodeUsageTracker(cleanupInterval time.Duration) *CodeUsageTracker {
	return &CodeUsageTracker{cache: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (t *CodeUsageTracker) MarkUsed(_ context.Context, username, code string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	// Add fails when an unexpired entry exists.
	if err := t.cache.Add(username+"\x00"+code, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

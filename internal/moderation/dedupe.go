package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers which message IDs have already been handled.
type Deduper interface {
	// MarkSeen records the message and reports whether it was already known.
	MarkSeen(ctx context.Context, messageID string) (bool, error)
}

const seenKeyPrefix = "warden:moderation:seen:"

// RedisDeduper backs dedupe state with redis so restarts do not re-moderate
// recent messages.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) MarkSeen(ctx context.Context, messageID string) (bool, error) {
	set, err := d.client.SetNX(ctx, seenKeyPrefix+messageID, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message seen: %w", err)
	}
	return !set, nil
}

// MemoryDeduper is the in-process Deduper used in tests and when redis is
// not configured. Entries are never evicted.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]struct{})}
}

func (d *MemoryDeduper) MarkSeen(_ context.Context, messageID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[messageID]; ok {
		return true, nil
	}
	d.seen[messageID] = struct{}{}
	return false, nil
}

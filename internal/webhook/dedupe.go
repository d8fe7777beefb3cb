package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers webhook event ids that were fully processed.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

const (
	dedupePrefix = "webhook:event:"
	dedupeTTL    = 72 * time.Hour
)

type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: dedupeTTL}
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupePrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDeduper) Mark(ctx context.Context, eventID string) error {
	return d.client.SetNX(ctx, dedupePrefix+eventID, time.Now().UTC().Format(time.RFC3339), d.ttl).Err()
}

// MemoryDeduper is the single-instance fallback when redis is not configured.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]time.Time), ttl: dedupeTTL, now: time.Now}
}

func (d *MemoryDeduper) Seen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.seen[eventID]
	if ok && d.now().Sub(at) > d.ttl {
		delete(d.seen, eventID)
		return false, nil
	}
	return ok, nil
}

func (d *MemoryDeduper) Mark(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for id, at := range d.seen {
		if now.Sub(at) > d.ttl {
			delete(d.seen, id)
		}
	}
	d.seen[eventID] = now
	return nil
}

package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, owner Owner) (Cart, error)
	Set(ctx context.Context, c Cart) error
	Delete(ctx context.Context, owner Owner) error
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

func (r *RedisCache) Get(ctx context.Context, owner Owner) (Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{}, ErrCacheMiss
	}
	if err != nil {
		return Cart{}, fmt.Errorf("redis get failed: %w", err)
	}

	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return Cart{}, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return c, nil
}

func (r *RedisCache) Set(ctx context.Context, c Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	// jitter spreads expiry of carts written in the same burst
	ttl := r.baseTTL + time.Duration(rand.Intn(5))*time.Minute
	if err := r.client.Set(ctx, cacheKey(c.Owner()), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, owner Owner) error {
	if err := r.client.Del(ctx, cacheKey(owner)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(o Owner) string {
	return "cart:" + o.Key()
}

// CachedRepository is a read-through cache in front of a Repository. Writes go
// to the store first and then drop the cached copy. Every drop bumps gen; a
// read only fills the cache with what it loaded if gen did not move while it
// was loading, so a reader racing a write cannot resurrect the old cart.
type CachedRepository struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
	sfg   singleflight.Group
	gen   atomic.Uint64
}

func NewCachedRepository(repo Repository, cache Cache, log *slog.Logger) *CachedRepository {
	if log == nil {
		log = slog.Default()
	}
	return &CachedRepository{repo: repo, cache: cache, log: log}
}

func (r *CachedRepository) Get(ctx context.Context, owner Owner) (Cart, error) {
	v, err, _ := r.sfg.Do(owner.Key(), func() (interface{}, error) {
		c, err := r.cache.Get(ctx, owner)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			r.log.WarnContext(ctx, "cart cache get failed", "owner", owner.Key(), "error", err)
		}

		gen := r.gen.Load()
		c, err = r.repo.Get(ctx, owner)
		if err != nil {
			return Cart{}, err
		}
		r.fill(ctx, c, gen)
		return c, nil
	})
	if err != nil {
		return Cart{}, err
	}
	return cloneCart(v.(Cart)), nil
}

func (r *CachedRepository) Save(ctx context.Context, c Cart) (Cart, error) {
	saved, err := r.repo.Save(ctx, c)
	if err != nil {
		return Cart{}, err
	}
	r.invalidate(ctx, saved.Owner())
	return saved, nil
}

func (r *CachedRepository) Delete(ctx context.Context, owner Owner) error {
	if err := r.repo.Delete(ctx, owner); err != nil {
		return err
	}
	r.invalidate(ctx, owner)
	return nil
}

func (r *CachedRepository) fill(ctx context.Context, c Cart, gen uint64) {
	if r.gen.Load() != gen {
		return
	}
	if err := r.cache.Set(ctx, c); err != nil {
		r.log.WarnContext(ctx, "cart cache set failed", "owner", c.Owner().Key(), "error", err)
		return
	}
	// a write between the check and the Set may have dropped the key first
	if r.gen.Load() != gen {
		r.invalidate(ctx, c.Owner())
	}
}

func (r *CachedRepository) invalidate(ctx context.Context, owner Owner) {
	r.gen.Add(1)
	if err := r.cache.Delete(ctx, owner); err != nil {
		r.log.WarnContext(ctx, "cart cache invalidate failed", "owner", owner.Key(), "error", err)
	}
}

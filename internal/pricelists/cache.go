package pricelists

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache keeps resolved pricelists in Redis. Concurrent misses for the
// same pricelist collapse into one repository read via singleflight.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache builds a pricelist cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

type cachedPricelist struct {
	Pricelist Pricelist `json:"pricelist"`
	Lines     []Line    `json:"lines"`
}

func cacheKey(id int64) string {
	return fmt.Sprintf("pricelist:%d", id)
}

// Get returns the cached pricelist, loading it through fn on a miss.
func (c *Cache) Get(ctx context.Context, id int64, load func(context.Context) (Pricelist, []Line, error)) (Pricelist, []Line, error) {
	if c.client != nil {
		raw, err := c.client.Get(ctx, cacheKey(id)).Bytes()
		if err == nil {
			var cached cachedPricelist
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached.Pricelist, cached.Lines, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			// Redis being down must not take pricing down with it.
			return load(ctx)
		}
	}

	v, err, _ := c.group.Do(cacheKey(id), func() (any, error) {
		pl, lines, err := load(ctx)
		if err != nil {
			return nil, err
		}
		cached := cachedPricelist{Pricelist: pl, Lines: lines}
		if c.client != nil {
			if data, err := json.Marshal(cached); err == nil {
				_ = c.client.Set(ctx, cacheKey(id), data, c.ttl).Err()
			}
		}
		return cached, nil
	})
	if err != nil {
		return Pricelist{}, nil, err
	}
	cached := v.(cachedPricelist)
	return cached.Pricelist, cached.Lines, nil
}

// Invalidate drops the cached entry after a write.
func (c *Cache) Invalidate(ctx context.Context, id int64) {
	if c.client == nil {
		return
	}
	_ = c.client.Del(ctx, cacheKey(id)).Err()
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisCache keeps a JSON copy of each cart under <prefix>:cart:<userID>.
// Entries live for ttl plus up to a tenth of ttl, so carts cached together
// do not all expire together.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// Get returns ErrCacheMiss for absent entries and for unreadable ones, which are evicted.
func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	key := r.key(userID)

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil || cart.UserID != userID {
		if delErr := r.client.Del(ctx, key).Err(); delErr != nil {
			return nil, fmt.Errorf("evict unreadable cart entry: %w", delErr)
		}
		return nil, fmt.Errorf("%w: unreadable entry evicted", ErrCacheMiss)
	}
	cart.Normalize()
	return &cart, nil
}

func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID), data, r.expiry()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisCache) expiry() time.Duration {
	spread := int64(r.ttl / 10)
	if spread <= 0 {
		return r.ttl
	}
	return r.ttl + time.Duration(rand.Int63n(spread+1))
}

func (r *RedisCache) key(userID string) string {
	if r.prefix == "" {
		return "cart:" + userID
	}
	return r.prefix + ":cart:" + userID
}

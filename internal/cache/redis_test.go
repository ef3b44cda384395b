package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrefix = "storefront"

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client, testPrefix, 20*time.Minute)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func testCart(userID string) *domain.Cart {
	cart := domain.NewCart(userID)
	cart.Items["1"] = domain.CartLineItem{ProductID: "1", Quantity: 2}
	cart.Items["2"] = domain.CartLineItem{ProductID: "2", Quantity: 3}
	cart.Selections["1"] = true
	cart.Selections["3"] = true
	return cart
}

func TestGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	userID := "user123"
	cartJSON, err := json.Marshal(testCart(userID))
	require.NoError(t, err)
	require.NoError(t, mr.Set("storefront:cart:user123", string(cartJSON)))

	result, err := cache.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, result.UserID)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, 3, result.Items["2"].Quantity)
	assert.True(t, result.Selections["1"])
	_, orphan := result.Selections["3"]
	assert.False(t, orphan, "selection without an item is pruned")
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	result, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_UnreadableEntryIsEvicted(t *testing.T) {
	tests := []struct {
		name  string
		value func(t *testing.T) string
	}{
		{"truncated json", func(t *testing.T) string {
			data, err := json.Marshal(testCart("user123"))
			require.NoError(t, err)
			return string(data[:10])
		}},
		{"other user's cart", func(t *testing.T) string {
			data, err := json.Marshal(testCart("someone-else"))
			require.NoError(t, err)
			return string(data)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, mr, cleanup := setupTestRedis(t)
			defer cleanup()
			require.NoError(t, mr.Set("storefront:cart:user123", tt.value(t)))

			_, err := cache.Get(context.Background(), "user123")
			assert.ErrorIs(t, err, ErrCacheMiss)
			assert.False(t, mr.Exists("storefront:cart:user123"))
		})
	}
}

func TestSet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	userID := "user456"
	require.NoError(t, cache.Set(context.Background(), userID, testCart(userID)))

	stored, err := mr.Get("storefront:cart:user456")
	require.NoError(t, err)

	var storedCart domain.Cart
	require.NoError(t, json.Unmarshal([]byte(stored), &storedCart))
	assert.Equal(t, userID, storedCart.UserID)
	assert.Len(t, storedCart.Items, 2)
}

func TestSet_TTLSpread(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	for _, userID := range []string{"a", "b", "c", "d"} {
		require.NoError(t, cache.Set(context.Background(), userID, domain.NewCart(userID)))

		ttl := mr.TTL("storefront:cart:" + userID)
		assert.GreaterOrEqual(t, ttl, 20*time.Minute)
		assert.LessOrEqual(t, ttl, 22*time.Minute)
	}
}

func TestDelete_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	userID := "user999"
	require.NoError(t, cache.Set(context.Background(), userID, domain.NewCart(userID)))
	assert.True(t, mr.Exists("storefront:cart:user999"))

	require.NoError(t, cache.Delete(context.Background(), userID))
	assert.False(t, mr.Exists("storefront:cart:user999"))

	// deleting again is fine
	assert.NoError(t, cache.Delete(context.Background(), userID))
}

func TestNoop_AlwaysMisses(t *testing.T) {
	var c CartCache = Noop{}
	require.NoError(t, c.Set(context.Background(), "u", domain.NewCart("u")))

	_, err := c.Get(context.Background(), "u")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestKey_Prefix(t *testing.T) {
	assert.Equal(t, "storefront:cart:u1", (&RedisCache{prefix: "storefront"}).key("u1"))
	assert.Equal(t, "cart:u1", (&RedisCache{}).key("u1"))
}

package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
)

// CartCache is a read-through copy of persisted carts. Writers invalidate, never update.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")

// Noop always misses; used when the repository is already an in-memory or redis store.
type Noop struct{}

func (Noop) Get(context.Context, string) (*domain.Cart, error) { return nil, ErrCacheMiss }

func (Noop) Set(context.Context, string, *domain.Cart) error { return nil }

func (Noop) Delete(context.Context, string) error { return nil }

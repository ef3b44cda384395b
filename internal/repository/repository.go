package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/fjod/go_cart/storefront-cart/internal/storage"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrSessionNotFound = errors.New("checkout session not found")
)

// SessionRetention keeps expired sessions around long enough for a lazy read to
// report them as expired rather than missing.
const SessionRetention = 24 * time.Hour

// CartRepository defines the interface for cart and checkout session persistence.
// SaveCart writes items and selections together or not at all.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart *domain.Cart) error
	DeleteCart(ctx context.Context, userID string) error

	GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error)
	SaveSession(ctx context.Context, session *domain.CheckoutSession) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// checkItems rejects stored line items that break the cart's invariants.
func checkItems(cart *domain.Cart) error {
	for id, item := range cart.Items {
		if item.ProductID != id || item.Quantity < 1 {
			return fmt.Errorf("cart item %q: %w", id, storage.ErrCorrupted)
		}
	}
	return nil
}

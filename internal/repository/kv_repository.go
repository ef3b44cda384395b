package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/fjod/go_cart/storefront-cart/internal/storage"
)

const (
	itemsKeySuffix      = "cart_items"
	selectionsKeySuffix = "cart_selections"
	sessionKeyPrefix    = "checkout_session_"
)

type kvRepository struct {
	kv  storage.KV
	now func() time.Time
}

// NewKVRepository stores carts as the cart_items / cart_selections key pair and
// sessions as checkout_session_<id>.
func NewKVRepository(kv storage.KV) CartRepository {
	return &kvRepository{kv: kv, now: time.Now}
}

func (r *kvRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart := domain.NewCart(userID)

	errItems := storage.GetJSON(ctx, r.kv, itemsKey(userID), &cart.Items)
	errSelections := storage.GetJSON(ctx, r.kv, selectionsKey(userID), &cart.Selections)

	itemsMissing := errors.Is(errItems, storage.ErrNotFound)
	selectionsMissing := errors.Is(errSelections, storage.ErrNotFound)
	if itemsMissing && selectionsMissing {
		return nil, ErrCartNotFound
	}
	if errItems != nil && !itemsMissing {
		return nil, fmt.Errorf("failed to get cart items: %w", errItems)
	}
	if errSelections != nil && !selectionsMissing {
		return nil, fmt.Errorf("failed to get cart selections: %w", errSelections)
	}

	if err := checkItems(cart); err != nil {
		return nil, err
	}
	cart.Normalize()
	return cart, nil
}

func (r *kvRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	items, err := storage.JSONEntry(itemsKey(cart.UserID), cart.Items, 0)
	if err != nil {
		return err
	}
	selections, err := storage.JSONEntry(selectionsKey(cart.UserID), cart.Selections, 0)
	if err != nil {
		return err
	}
	if err := r.kv.Put(ctx, items, selections); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (r *kvRepository) DeleteCart(ctx context.Context, userID string) error {
	if err := r.kv.Delete(ctx, itemsKey(userID), selectionsKey(userID)); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func (r *kvRepository) GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	var session domain.CheckoutSession
	err := storage.GetJSON(ctx, r.kv, sessionKey(sessionID), &session)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}
	return &session, nil
}

func (r *kvRepository) SaveSession(ctx context.Context, session *domain.CheckoutSession) error {
	ttl := session.ExpiresAt.Sub(r.now()) + SessionRetention
	if ttl <= 0 {
		ttl = SessionRetention
	}
	entry, err := storage.JSONEntry(sessionKey(session.ID), session, ttl)
	if err != nil {
		return err
	}
	if err := r.kv.Put(ctx, entry); err != nil {
		return fmt.Errorf("failed to save checkout session: %w", err)
	}
	return nil
}

func (r *kvRepository) DeleteSession(ctx context.Context, sessionID string) error {
	if err := r.kv.Delete(ctx, sessionKey(sessionID)); err != nil {
		return fmt.Errorf("failed to delete checkout session: %w", err)
	}
	return nil
}

func itemsKey(userID string) string {
	return userID + ":" + itemsKeySuffix
}

func selectionsKey(userID string) string {
	return userID + ":" + selectionsKeySuffix
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

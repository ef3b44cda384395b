package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/fjod/go_cart/storefront-cart/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingKV lets a test break writes after a number of successful calls.
type failingKV struct {
	*storage.MemoryKV
	putErr error
}

func (f *failingKV) Put(ctx context.Context, entries ...storage.Entry) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryKV.Put(ctx, entries...)
}

func sampleCart(userID string) *domain.Cart {
	cart := domain.NewCart(userID)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cart.Items["P1"] = domain.CartLineItem{ProductID: "P1", Quantity: 2, SelectedAt: now}
	cart.Items["P2"] = domain.CartLineItem{ProductID: "P2", Quantity: 1, SelectedAt: now.Add(time.Second)}
	cart.Selections["P1"] = true
	cart.Selections["P2"] = false
	return cart
}

func TestKVRepository_GetCart_NotFound(t *testing.T) {
	repo := NewKVRepository(storage.NewMemoryKV())

	cart, err := repo.GetCart(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestKVRepository_SaveAndGetCart(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	repo := NewKVRepository(kv)

	require.NoError(t, repo.SaveCart(ctx, sampleCart("u1")))

	_, err := kv.Get(ctx, "u1:cart_items")
	require.NoError(t, err)
	_, err = kv.Get(ctx, "u1:cart_selections")
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", cart.UserID)
	assert.Len(t, cart.Items, 2)
	assert.Equal(t, 2, cart.Items["P1"].Quantity)
	assert.True(t, cart.Selections["P1"])
}

func TestKVRepository_GetCart_PrunesOrphanSelections(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	repo := NewKVRepository(kv)

	cart := sampleCart("u1")
	cart.Selections["GHOST"] = true
	require.NoError(t, repo.SaveCart(ctx, cart))

	got, err := repo.GetCart(ctx, "u1")
	require.NoError(t, err)
	_, exists := got.Selections["GHOST"]
	assert.False(t, exists)
}

func TestKVRepository_GetCart_Corrupted(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	repo := NewKVRepository(kv)
	kv.Raw("u1:cart_items", []byte(`[broken`))

	_, err := repo.GetCart(ctx, "u1")
	assert.ErrorIs(t, err, storage.ErrCorrupted)

	kv.Raw("u1:cart_items", []byte(`{"P1":{"product_id":"P2","quantity":1}}`))
	_, err = repo.GetCart(ctx, "u1")
	assert.ErrorIs(t, err, storage.ErrCorrupted)

	kv.Raw("u1:cart_items", []byte(`{"P1":{"product_id":"P1","quantity":0}}`))
	_, err = repo.GetCart(ctx, "u1")
	assert.ErrorIs(t, err, storage.ErrCorrupted)
}

func TestKVRepository_SaveCart_FailureLeavesPreviousState(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{MemoryKV: storage.NewMemoryKV()}
	repo := NewKVRepository(kv)
	require.NoError(t, repo.SaveCart(ctx, sampleCart("u1")))

	kv.putErr = errors.New("disk full")
	updated := sampleCart("u1")
	updated.Remove("P1")
	err := repo.SaveCart(ctx, updated)
	require.Error(t, err)

	cart, err := repo.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
	assert.True(t, cart.Selections["P1"])
}

func TestKVRepository_DeleteCart(t *testing.T) {
	ctx := context.Background()
	repo := NewKVRepository(storage.NewMemoryKV())
	require.NoError(t, repo.SaveCart(ctx, sampleCart("u1")))

	require.NoError(t, repo.DeleteCart(ctx, "u1"))
	_, err := repo.GetCart(ctx, "u1")
	assert.ErrorIs(t, err, ErrCartNotFound)

	// deleting twice is fine
	assert.NoError(t, repo.DeleteCart(ctx, "u1"))
}

func TestKVRepository_Sessions(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	repo := NewKVRepository(kv)
	now := time.Now()

	session := &domain.CheckoutSession{
		ID:        "s-1",
		UserID:    "u1",
		Items:     []domain.SnapshotItem{{ProductID: "P1", Quantity: 2, UnitPriceCents: 5000, SubtotalCents: 10000}},
		Summary:   domain.CartSummary{TotalItems: 2, TotalPriceCents: 10000, FinalPriceCents: 10000},
		CreatedAt: now,
		ExpiresAt: now.Add(domain.SessionTTL),
		Validated: true,
	}
	require.NoError(t, repo.SaveSession(ctx, session))

	_, err := kv.Get(ctx, "checkout_session_s-1")
	require.NoError(t, err)

	got, err := repo.GetSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, session.Items, got.Items)
	assert.Equal(t, session.Summary, got.Summary)
	assert.WithinDuration(t, session.ExpiresAt, got.ExpiresAt, time.Millisecond)

	require.NoError(t, repo.DeleteSession(ctx, "s-1"))
	_, err = repo.GetSession(ctx, "s-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCheckItems(t *testing.T) {
	cart := sampleCart("u1")
	assert.NoError(t, checkItems(cart))

	cart.Items["P3"] = domain.CartLineItem{ProductID: "P3", Quantity: 0}
	assert.ErrorIs(t, checkItems(cart), storage.ErrCorrupted)

	cart = sampleCart("u1")
	cart.Items["P3"] = domain.CartLineItem{ProductID: "P4", Quantity: 1}
	assert.ErrorIs(t, checkItems(cart), storage.ErrCorrupted)
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/go_cart/storefront-cart/internal/catalog"
	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/fjod/go_cart/storefront-cart/internal/feedback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_AllValid(t *testing.T) {
	f := newFixture(t, product("P1", 5000, 10))
	ctx := context.Background()
	f.add(t, "u1", line("P1", 3))

	result, err := f.validator.Validate(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, result.ValidItems, 1)
	assert.Empty(t, result.InvalidItems)
	assert.Empty(t, result.StockAdjustedItems)
	assert.False(t, result.Changed())

	item := result.ValidItems[0]
	assert.Equal(t, "P1", item.ProductID)
	assert.Equal(t, 3, item.Quantity)
	assert.Equal(t, int64(15000), item.SubtotalCents)
	assert.True(t, item.Selected)

	assert.Equal(t, 3, Summarize(result.Snapshot(), Discount{}).TotalItems)
}

func TestValidator_ClampsToStock(t *testing.T) {
	f := newFixture(t, product("P1", 5000, 10))
	ctx := context.Background()
	f.add(t, "u1", line("P1", 3))
	f.directory.SetStock("P1", 2)

	result, err := f.validator.Validate(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, result.StockAdjustedItems, 1)
	adj := result.StockAdjustedItems[0]
	assert.Equal(t, "P1", adj.ProductID)
	assert.Equal(t, 3, adj.Requested)
	assert.Equal(t, 2, adj.Available)
	assert.Equal(t, 2, adj.Item.Quantity)
	assert.Equal(t, "quantity adjusted to available stock: 2", adj.Message)
	assert.Empty(t, result.ValidItems)

	cart, err := f.cart.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items["P1"].Quantity)
}

func TestValidator_OutOfStockIsRemoved(t *testing.T) {
	f := newFixture(t, product("P1", 5000, 10))
	ctx := context.Background()
	f.add(t, "u1", line("P1", 2))
	f.directory.SetStock("P1", 0)

	result, err := f.validator.Validate(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, result.InvalidItems, 1)
	invalid := result.InvalidItems[0]
	assert.Equal(t, domain.InvalidReasonOutOfStock, invalid.Reason)
	assert.True(t, feedback.IsType(invalid.Err, feedback.TypeStock))

	cart, err := f.cart.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	_, selected := cart.Selections["P1"]
	assert.False(t, selected)

	stored, err := f.repo.GetCart(ctx, "u1")
	require.NoError(t, err)
	_, selected = stored.Selections["P1"]
	assert.False(t, selected)
}

func TestValidator_MissingAndMalformedProducts(t *testing.T) {
	f := newFixture(t,
		product("P1", 5000, 10),
		domain.Product{ID: "P2", Name: "", PriceCents: 100, Stock: 5},
		domain.Product{ID: "P3", Name: "Negative", PriceCents: -1, Stock: 5},
	)
	ctx := context.Background()
	f.add(t, "u1", line("P1", 1), line("P2", 1), line("P3", 1), line("P4", 1))

	result, err := f.validator.Validate(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, result.ValidItems, 1)
	require.Len(t, result.InvalidItems, 3)
	for _, invalid := range result.InvalidItems {
		assert.Equal(t, domain.InvalidReasonNotFound, invalid.Reason, invalid.ProductID)
		ce, ok := feedback.As(invalid.Err)
		require.True(t, ok)
		assert.Equal(t, feedback.CodeProductNotFound, ce.Code)
		assert.Equal(t, invalid.ProductID, ce.ProductID)
	}

	cart, err := f.cart.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestValidator_LookupFailureIsIsolated(t *testing.T) {
	f := newFixture(t, product("P1", 5000, 10), product("P2", 3000, 10))
	ctx := context.Background()
	f.add(t, "u1", line("P1", 1), line("P2", 1))
	f.directory.Fail("P1", errors.New("connection reset"))

	result, err := f.validator.Validate(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, result.ValidItems, 1)
	assert.Equal(t, "P2", result.ValidItems[0].ProductID)
	require.Len(t, result.InvalidItems, 1)
	assert.Equal(t, domain.InvalidReasonLookupFailed, result.InvalidItems[0].Reason)
	assert.True(t, feedback.IsType(result.InvalidItems[0].Err, feedback.TypeNetwork))

	// the item stays so a later pass can confirm it
	cart, err := f.cart.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestValidator_PartitionTotality(t *testing.T) {
	tests := []struct {
		name     string
		stocks   map[string]int
		missing  []string
		failing  []string
		quantity int
	}{
		{"all valid", map[string]int{"A": 5, "B": 5, "C": 5}, nil, nil, 2},
		{"mixed", map[string]int{"A": 0, "B": 1, "C": 5}, nil, nil, 2},
		{"missing and failing", map[string]int{"A": 5, "B": 5, "C": 5}, []string{"A"}, []string{"B"}, 2},
		{"everything invalid", map[string]int{"A": 0, "B": 0, "C": 0}, nil, nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			for id, stock := range tt.stocks {
				f.directory.Upsert(product(id, 100, stock))
			}
			for _, id := range tt.missing {
				f.directory.Remove(id)
			}
			for _, id := range tt.failing {
				f.directory.Fail(id, catalog.ErrUnavailable)
			}
			f.add(t, "u1", line("A", tt.quantity), line("B", tt.quantity), line("C", tt.quantity))

			result, err := f.validator.Validate(context.Background(), "u1")
			require.NoError(t, err)

			seen := map[string]int{}
			for _, item := range result.ValidItems {
				seen[item.ProductID]++
			}
			for _, item := range result.InvalidItems {
				seen[item.ProductID]++
			}
			for _, item := range result.StockAdjustedItems {
				seen[item.ProductID]++
			}
			assert.Equal(t, map[string]int{"A": 1, "B": 1, "C": 1}, seen)
		})
	}
}

func TestValidator_DeterministicOrder(t *testing.T) {
	f := newFixture(t, product("P3", 100, 5), product("P1", 100, 5), product("P2", 100, 5))
	ctx := context.Background()
	f.add(t, "u1", line("P3", 1), line("P1", 1), line("P2", 1))

	for i := 0; i < 5; i++ {
		result, err := f.validator.Validate(ctx, "u1")
		require.NoError(t, err)
		ids := []string{}
		for _, item := range result.ValidItems {
			ids = append(ids, item.ProductID)
		}
		assert.Equal(t, []string{"P3", "P1", "P2"}, ids)
	}
}

func TestValidator_RestrictedToSubset(t *testing.T) {
	f := newFixture(t, product("P1", 100, 0), product("P2", 100, 5))
	ctx := context.Background()
	f.add(t, "u1", line("P1", 1), line("P2", 1))

	result, err := f.validator.Validate(ctx, "u1", "P2")
	require.NoError(t, err)
	assert.Len(t, result.ValidItems, 1)
	assert.Empty(t, result.InvalidItems)

	// P1 was not scanned, so it is still in the cart despite having no stock
	cart, err := f.cart.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestValidator_SingleWriteAfterScan(t *testing.T) {
	f := newFixture(t, product("P1", 100, 0), product("P2", 100, 1), product("P3", 100, 5))
	ctx := context.Background()
	f.add(t, "u1", line("P1", 2), line("P2", 2), line("P3", 2))
	saves := f.repo.saveCount()

	_, err := f.validator.Validate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, saves+1, f.repo.saveCount())

	// nothing changes on a second pass
	_, err = f.validator.Validate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, saves+1, f.repo.saveCount())
}

func TestValidator_SaveFailure(t *testing.T) {
	f := newFixture(t, product("P1", 100, 0))
	ctx := context.Background()
	f.add(t, "u1", line("P1", 1))
	f.repo.failSave(errors.New("disk full"))

	_, err := f.validator.Validate(ctx, "u1")
	assert.True(t, feedback.IsType(err, feedback.TypeStorage))
}

package catalog

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
)

// MemoryDirectory implements Directory with in-memory product data.
type MemoryDirectory struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	failures map[string]error
}

func NewMemoryDirectory(products ...domain.Product) *MemoryDirectory {
	d := &MemoryDirectory{
		products: make(map[string]domain.Product, len(products)),
		failures: make(map[string]error),
	}
	for _, p := range products {
		d.products[p.ID] = p
	}
	return d
}

// GetProductByID returns a copy so callers never share catalog state.
func (d *MemoryDirectory) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err, failing := d.failures[id]; failing {
		return nil, err
	}
	product, exists := d.products[id]
	if !exists {
		return nil, ErrProductNotFound
	}
	return &product, nil
}

// Upsert adds or replaces a product.
func (d *MemoryDirectory) Upsert(p domain.Product) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.products[p.ID] = p
}

// SetStock sets the stock level for a product; unknown ids are ignored.
func (d *MemoryDirectory) SetStock(id string, stock int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, exists := d.products[id]; exists {
		p.Stock = stock
		d.products[id] = p
	}
}

func (d *MemoryDirectory) SetPrice(id string, cents int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, exists := d.products[id]; exists {
		p.PriceCents = cents
		d.products[id] = p
	}
}

func (d *MemoryDirectory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.products, id)
}

// Fail makes lookups of id return err until cleared with a nil err.
func (d *MemoryDirectory) Fail(id string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err == nil {
		delete(d.failures, id)
		return
	}
	d.failures[id] = err
}

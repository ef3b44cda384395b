package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/cache"
	"github.com/fjod/go_cart/storefront-cart/internal/catalog"
	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/fjod/go_cart/storefront-cart/internal/publisher"
	"github.com/fjod/go_cart/storefront-cart/internal/repository"
	"github.com/fjod/go_cart/storefront-cart/internal/storage"
)

type fakeClock struct {
	m   sync.RWMutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.m.Lock()
	defer c.m.Unlock()
	c.now = c.now.Add(d)
}

type mockCache struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[string]*domain.Cart)}
}

func (m *mockCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart.Clone(), nil
}

func (m *mockCache) Set(_ context.Context, userID string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[userID] = cart.Clone()
	return m.err
}

func (m *mockCache) Delete(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, userID)
	return m.err
}

func (m *mockCache) cached(userID string) bool {
	m.m.RLock()
	defer m.m.RUnlock()
	_, ok := m.carts[userID]
	return ok
}

// mockRepository wraps a real repository and can be told to fail.
type mockRepository struct {
	repository.CartRepository
	m       sync.RWMutex
	getErr  error
	saveErr error
	saves   int
}

func (m *mockRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	err := m.getErr
	m.m.RUnlock()
	if err != nil {
		return nil, err
	}
	return m.CartRepository.GetCart(ctx, userID)
}

func (m *mockRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	m.m.Lock()
	m.saves++
	err := m.saveErr
	m.m.Unlock()
	if err != nil {
		return err
	}
	return m.CartRepository.SaveCart(ctx, cart)
}

func (m *mockRepository) failGet(err error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.getErr = err
}

func (m *mockRepository) failSave(err error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.saveErr = err
}

func (m *mockRepository) saveCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.saves
}

type mockPublisher struct {
	m      sync.RWMutex
	events []publisher.SessionEvent
}

func (p *mockPublisher) Publish(_ context.Context, event publisher.SessionEvent) error {
	p.m.Lock()
	defer p.m.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *mockPublisher) types() []publisher.EventType {
	p.m.RLock()
	defer p.m.RUnlock()
	out := make([]publisher.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	clock     *fakeClock
	kv        *storage.MemoryKV
	repo      *mockRepository
	cache     *mockCache
	directory *catalog.MemoryDirectory
	events    *mockPublisher
	cart      *CartService
	validator *Validator
	checkout  *CheckoutService
	recovery  *Recovery
}

func newFixture(t *testing.T, products ...domain.Product) *fixture {
	return newFixtureWithDiscount(t, Discount{}, products...)
}

func newFixtureWithDiscount(t *testing.T, discount Discount, products ...domain.Product) *fixture {
	t.Helper()
	f := &fixture{
		clock:     newFakeClock(),
		kv:        storage.NewMemoryKV(),
		cache:     newMockCache(),
		directory: catalog.NewMemoryDirectory(products...),
		events:    &mockPublisher{},
	}
	f.repo = &mockRepository{CartRepository: repository.NewKVRepository(f.kv)}

	opts := []Option{WithClock(f.clock.Now)}
	f.cart = NewCartService(f.repo, f.cache, opts...)
	f.validator = NewValidator(f.cart, f.directory, opts...)
	f.checkout = NewCheckoutService(f.validator, f.events, discount, opts...)
	f.recovery = NewRecovery(f.validator, opts...)
	return f
}

func product(id string, priceCents int64, stock int) domain.Product {
	return domain.Product{ID: id, Name: "Product " + id, PriceCents: priceCents, Stock: stock}
}

// add puts items in the cart one second apart so their order is fixed.
func (f *fixture) add(t *testing.T, userID string, items ...domain.CartLineItem) {
	t.Helper()
	for _, item := range items {
		if _, err := f.cart.AddOrUpdate(context.Background(), userID, item.ProductID, item.Quantity); err != nil {
			t.Fatalf("add %s: %v", item.ProductID, err)
		}
		f.clock.Advance(time.Second)
	}
}

func line(productID string, quantity int) domain.CartLineItem {
	return domain.CartLineItem{ProductID: productID, Quantity: quantity}
}

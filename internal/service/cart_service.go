package service

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/cache"
	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/fjod/go_cart/storefront-cart/internal/feedback"
	"github.com/fjod/go_cart/storefront-cart/internal/repository"
	"go.uber.org/zap"
)

// CartService is the cart store: line items plus selection state per user.
// Every operation on one user's cart runs under that user's lock.
type CartService struct {
	repo  repository.CartRepository
	cache cache.CartCache
	locks *userLocks
	settings
}

func NewCartService(repo repository.CartRepository, c cache.CartCache, opts ...Option) *CartService {
	if c == nil {
		c = cache.Noop{}
	}
	return &CartService{
		repo:     repo,
		cache:    c,
		locks:    newUserLocks(),
		settings: newSettings(opts),
	}
}

func (s *CartService) MaxQuantity() int {
	return s.maxQuantity
}

// Get returns the cart with selections pruned to present items. A user without a
// stored cart gets an empty one.
func (s *CartService) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	release := s.locks.lock(userID)
	defer release()

	return s.read(ctx, userID)
}

// Count is the total quantity across all line items.
func (s *CartService) Count(ctx context.Context, userID string) (int, error) {
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return cart.TotalQuantity(), nil
}

// AddOrUpdate adds delta to an existing line item or creates a new, selected one.
// Stock is not checked here; the validator corrects over-quantity later.
func (s *CartService) AddOrUpdate(ctx context.Context, userID, productID string, delta int) (*domain.Cart, error) {
	if productID == "" {
		return nil, feedback.New(feedback.TypeValidation, feedback.CodeInvalidArgument, "product id is required")
	}

	cart, err := s.update(ctx, userID, func(cart *domain.Cart) (bool, error) {
		now := s.now()
		item, exists := cart.Items[productID]
		if !exists {
			if delta < 1 {
				return false, feedback.New(feedback.TypeValidation, feedback.CodeInvalidArgument,
					"quantity must be at least 1", feedback.WithProduct(productID))
			}
			cart.Items[productID] = domain.CartLineItem{
				ProductID:  productID,
				Quantity:   clamp(delta, 1, s.maxQuantity),
				SelectedAt: now,
			}
			cart.Selections[productID] = true
			return true, nil
		}

		item.Quantity = clamp(item.Quantity+delta, 1, s.maxQuantity)
		item.SelectedAt = now
		cart.Items[productID] = item
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("cart item added",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.Int("delta", delta))
	return cart, nil
}

// UpdateQuantity sets an absolute quantity, clamped to [1, max].
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	return s.update(ctx, userID, func(cart *domain.Cart) (bool, error) {
		item, exists := cart.Items[productID]
		if !exists {
			return false, feedback.New(feedback.TypeValidation, feedback.CodeItemNotFound,
				"item is not in the cart", feedback.WithProduct(productID))
		}
		item.Quantity = clamp(quantity, 1, s.maxQuantity)
		item.SelectedAt = s.now()
		cart.Items[productID] = item
		return true, nil
	})
}

// Remove deletes line items and their selection entries. Absent ids are ignored.
func (s *CartService) Remove(ctx context.Context, userID string, productIDs ...string) (*domain.Cart, error) {
	return s.update(ctx, userID, func(cart *domain.Cart) (bool, error) {
		changed := false
		for _, id := range productIDs {
			if _, exists := cart.Items[id]; exists {
				changed = true
			}
			cart.Remove(id)
		}
		return changed, nil
	})
}

// SetSelection flips one item's selection; absent items are left alone.
func (s *CartService) SetSelection(ctx context.Context, userID, productID string, selected bool) (*domain.Cart, error) {
	return s.update(ctx, userID, func(cart *domain.Cart) (bool, error) {
		if _, exists := cart.Items[productID]; !exists {
			return false, nil
		}
		cart.Selections[productID] = selected
		return true, nil
	})
}

func (s *CartService) SelectAll(ctx context.Context, userID string, selected bool) (*domain.Cart, error) {
	return s.update(ctx, userID, func(cart *domain.Cart) (bool, error) {
		for id := range cart.Items {
			cart.Selections[id] = selected
		}
		return len(cart.Items) > 0, nil
	})
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	_, err := s.update(ctx, userID, func(cart *domain.Cart) (bool, error) {
		cart.Items = make(map[string]domain.CartLineItem)
		cart.Selections = make(map[string]bool)
		return true, nil
	})
	return err
}

// Reset drops whatever is stored for the user, including unreadable data, so the
// next read starts from an empty cart.
func (s *CartService) Reset(ctx context.Context, userID string) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	release := s.locks.lock(userID)
	defer release()

	if err := s.repo.DeleteCart(ctx, userID); err != nil {
		return feedback.Storage(err, "failed to reset cart")
	}
	s.invalidate(ctx, userID)
	s.logger.Info("cart reset", zap.String("user_id", userID))
	return nil
}

func (s *CartService) update(ctx context.Context, userID string, fn func(*domain.Cart) (bool, error)) (*domain.Cart, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	release := s.locks.lock(userID)
	defer release()

	return s.updateLocked(ctx, userID, fn)
}

// updateLocked loads the authoritative cart, applies fn and persists both maps in
// one write when fn reports a change. The caller holds the user's lock.
func (s *CartService) updateLocked(ctx context.Context, userID string, fn func(*domain.Cart) (bool, error)) (*domain.Cart, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	changed, err := fn(cart)
	if err != nil {
		return nil, err
	}
	if !changed {
		return cart, nil
	}

	cart.Normalize()
	cart.UpdatedAt = s.now()
	if err := s.repo.SaveCart(ctx, cart); err != nil {
		s.logger.Error("failed to save cart", zap.String("user_id", userID), zap.Error(err))
		return nil, feedback.Storage(err, "failed to save cart")
	}
	s.invalidate(ctx, userID)
	return cart, nil
}

// read serves from the cache when possible. The caller holds the user's lock.
func (s *CartService) read(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.cache.Get(ctx, userID)
	if err == nil {
		cart.Normalize()
		return cart, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("cache get error", zap.String("user_id", userID), zap.Error(err))
	}

	cart, err = s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, userID, cart); err != nil {
		s.logger.Warn("cache set error", zap.String("user_id", userID), zap.Error(err))
	}
	return cart, nil
}

func (s *CartService) load(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return domain.NewCart(userID), nil
	}
	if err != nil {
		s.logger.Error("failed to load cart", zap.String("user_id", userID), zap.Error(err))
		return nil, feedback.Storage(err, "failed to load cart")
	}
	return cart, nil
}

func (s *CartService) invalidate(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn("cache invalidate error", zap.String("user_id", userID), zap.Error(err))
	}
}

func checkUser(userID string) error {
	if userID == "" {
		return feedback.New(feedback.TypePermission, feedback.CodeUnauthenticated, "user is not signed in")
	}
	return nil
}

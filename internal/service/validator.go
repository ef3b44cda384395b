package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront-cart/internal/catalog"
	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/fjod/go_cart/storefront-cart/internal/feedback"
	"go.uber.org/zap"
)

// Validator reconciles stored line items with the product directory.
type Validator struct {
	store     *CartService
	directory catalog.Directory
	settings
}

func NewValidator(store *CartService, directory catalog.Directory, opts ...Option) *Validator {
	return &Validator{
		store:     store,
		directory: directory,
		settings:  newSettings(opts),
	}
}

// Validate scans the user's cart, or only productIDs when given, and partitions the
// scanned items into valid, invalid and stock-adjusted. Removals and clamped
// quantities are written back in a single save after the scan.
func (v *Validator) Validate(ctx context.Context, userID string, productIDs ...string) (*domain.ValidationResult, error) {
	var result *domain.ValidationResult
	_, err := v.store.update(ctx, userID, func(cart *domain.Cart) (bool, error) {
		result = v.reconcile(ctx, cart, productIDs)
		return result.Changed(), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// reconcile partitions the cart in place. Items whose lookup failed are reported
// invalid but stay in the cart, since the failure says nothing about the product.
func (v *Validator) reconcile(ctx context.Context, cart *domain.Cart, productIDs []string) *domain.ValidationResult {
	var scope map[string]bool
	if len(productIDs) > 0 {
		scope = make(map[string]bool, len(productIDs))
		for _, id := range productIDs {
			scope[id] = true
		}
	}

	result := &domain.ValidationResult{
		ValidItems:         []domain.SnapshotItem{},
		InvalidItems:       []domain.InvalidItem{},
		StockAdjustedItems: []domain.StockAdjustment{},
	}

	for _, item := range cart.Ordered() {
		if scope != nil && !scope[item.ProductID] {
			continue
		}
		selected := cart.Selections[item.ProductID]

		product, err := v.directory.GetProductByID(ctx, item.ProductID)
		switch {
		case err != nil:
			reason := domain.InvalidReasonLookupFailed
			if errors.Is(err, catalog.ErrProductNotFound) {
				reason = domain.InvalidReasonNotFound
			}
			result.InvalidItems = append(result.InvalidItems, domain.InvalidItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Reason:    reason,
				Err:       feedback.Catalog(err, item.ProductID),
			})

		case !product.WellFormed(item.ProductID):
			result.InvalidItems = append(result.InvalidItems, domain.InvalidItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Reason:    domain.InvalidReasonNotFound,
				Err: feedback.New(feedback.TypeValidation, feedback.CodeProductNotFound,
					"product is no longer available", feedback.WithProduct(item.ProductID)),
			})

		case product.Stock == 0:
			result.InvalidItems = append(result.InvalidItems, domain.InvalidItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Reason:    domain.InvalidReasonOutOfStock,
				Err: feedback.New(feedback.TypeStock, feedback.CodeOutOfStock,
					"product is out of stock", feedback.WithProduct(item.ProductID)),
			})

		case product.Stock < item.Quantity:
			adjusted := item
			adjusted.Quantity = product.Stock
			result.StockAdjustedItems = append(result.StockAdjustedItems, domain.StockAdjustment{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: product.Stock,
				Item:      domain.NewSnapshotItem(adjusted, product, selected),
				Message:   fmt.Sprintf("quantity adjusted to available stock: %d", product.Stock),
			})

		default:
			result.ValidItems = append(result.ValidItems, domain.NewSnapshotItem(item, product, selected))
		}
	}

	for _, invalid := range result.InvalidItems {
		if invalid.Reason == domain.InvalidReasonLookupFailed {
			continue
		}
		cart.Remove(invalid.ProductID)
	}
	for _, adj := range result.StockAdjustedItems {
		item := cart.Items[adj.ProductID]
		item.Quantity = adj.Available
		cart.Items[adj.ProductID] = item
	}

	if result.Changed() {
		v.logger.Info("cart reconciled",
			zap.String("user_id", cart.UserID),
			zap.Int("valid", len(result.ValidItems)),
			zap.Int("invalid", len(result.InvalidItems)),
			zap.Int("adjusted", len(result.StockAdjustedItems)))
	}
	return result
}

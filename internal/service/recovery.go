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

// Outcome reports what was done about an error.
type Outcome struct {
	Error     *feedback.CartError `json:"error,omitempty"`
	Recovered bool                `json:"recovered"`
	Message   string              `json:"message"`
	Propagate bool                `json:"propagate"`
}

// Recovery runs the automatic fixes behind the recovery actions.
type Recovery struct {
	store     *CartService
	directory catalog.Directory
	settings
}

func NewRecovery(validator *Validator, opts ...Option) *Recovery {
	return &Recovery{
		store:     validator.store,
		directory: validator.directory,
		settings:  newSettings(opts),
	}
}

// AutoFixStock re-reads the product and brings the line item in line with stock:
// removed when nothing is left, otherwise max(1, min(requested, available)).
func (r *Recovery) AutoFixStock(ctx context.Context, userID, productID string) (*Outcome, error) {
	outcome := &Outcome{}
	_, err := r.store.update(ctx, userID, func(cart *domain.Cart) (bool, error) {
		item, exists := cart.Items[productID]
		if !exists {
			outcome.Message = "item is no longer in the cart"
			return false, nil
		}

		product, err := r.directory.GetProductByID(ctx, productID)
		if err != nil && !errors.Is(err, catalog.ErrProductNotFound) {
			return false, feedback.Catalog(err, productID)
		}
		if err != nil || !product.WellFormed(productID) || product.Stock == 0 {
			cart.Remove(productID)
			outcome.Recovered = true
			outcome.Message = "item was removed because it is no longer available"
			return true, nil
		}

		quantity := max(1, min(item.Quantity, product.Stock))
		outcome.Recovered = true
		if quantity == item.Quantity {
			outcome.Message = "quantity is within available stock"
			return false, nil
		}
		item.Quantity = quantity
		cart.Items[productID] = item
		outcome.Message = fmt.Sprintf("quantity adjusted to available stock: %d", quantity)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("stock auto-fix",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.String("result", outcome.Message))
	return outcome, nil
}

// ResetCorruptedCart throws away the stored cart so the user starts over with an empty one.
func (r *Recovery) ResetCorruptedCart(ctx context.Context, userID string) (*Outcome, error) {
	if err := r.store.Reset(ctx, userID); err != nil {
		return nil, err
	}
	return &Outcome{Recovered: true, Message: "cart data was reset"}, nil
}

// Handle classifies err and runs the automatic recovery its type allows. The
// returned outcome always carries a message for the user.
func (r *Recovery) Handle(ctx context.Context, userID string, err error) *Outcome {
	ce := feedback.Classify(err)
	if ce == nil {
		return &Outcome{Message: "nothing to recover"}
	}
	outcome := &Outcome{Error: ce, Propagate: ce.Propagate(), Message: ce.Message}

	switch ce.Type {
	case feedback.TypeStock:
		if ce.Propagate() || ce.ProductID == "" {
			outcome.Message = "review the items in your cart"
			break
		}
		fixed, fixErr := r.AutoFixStock(ctx, userID, ce.ProductID)
		if fixErr != nil {
			r.logger.Warn("stock auto-fix failed", zap.String("user_id", userID), zap.Error(fixErr))
			outcome.Message = "stock could not be corrected automatically, try again"
			break
		}
		outcome.Recovered = fixed.Recovered
		outcome.Message = fixed.Message

	case feedback.TypeStorage:
		if ce.Code != feedback.CodeCorruptedState {
			outcome.Message = "saving the cart failed, try again"
			break
		}
		if _, resetErr := r.ResetCorruptedCart(ctx, userID); resetErr != nil {
			r.logger.Error("cart reset failed", zap.String("user_id", userID), zap.Error(resetErr))
			outcome.Message = "cart data is damaged and could not be reset"
			break
		}
		outcome.Recovered = true
		outcome.Message = "cart data was damaged and has been reset"

	case feedback.TypeNetwork:
		outcome.Message = "network is unavailable, try again"

	case feedback.TypePermission:
		outcome.Message = "sign in again to continue"
	}
	return outcome
}

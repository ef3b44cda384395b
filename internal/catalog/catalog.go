package catalog

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrUnavailable     = errors.New("product directory unavailable")
)

// Directory is the read-only product lookup the cart reconciles against.
// Each call must be safe to make per item in a loop and fail independently.
type Directory interface {
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
}

package feedback

import (
	"context"
	"errors"
	"net"

	"github.com/fjod/go_cart/storefront-cart/internal/catalog"
	"github.com/fjod/go_cart/storefront-cart/internal/storage"
	"github.com/sony/gobreaker/v2"
)

// Classify wraps a raw error coming out of the cart core. Errors that are already
// classified pass through untouched.
func Classify(err error) *CartError {
	if err == nil {
		return nil
	}
	if ce, ok := As(err); ok {
		return ce
	}
	if isTransient(err) {
		return New(TypeNetwork, CodeUnknown, "request did not complete, try again", WithCause(err))
	}
	return New(TypeStorage, CodeUnknown, "unexpected failure", WithCause(err))
}

// Storage classifies a failure raised by the persistence layer.
func Storage(err error, message string) *CartError {
	if err == nil {
		return nil
	}
	if ce, ok := As(err); ok {
		return ce
	}
	if errors.Is(err, storage.ErrCorrupted) {
		return New(TypeStorage, CodeCorruptedState, message+": stored cart data is corrupted", WithCause(err))
	}
	return New(TypeStorage, CodeStorageFailure, message, WithCause(err))
}

// Catalog classifies a failed product lookup for productID.
func Catalog(err error, productID string) *CartError {
	if err == nil {
		return nil
	}
	if ce, ok := As(err); ok {
		return ce
	}
	if errors.Is(err, catalog.ErrProductNotFound) {
		return New(TypeValidation, CodeProductNotFound, "product is no longer available",
			WithProduct(productID), WithCause(err))
	}
	return New(TypeNetwork, CodeCatalogFailure, "product information is temporarily unavailable",
		WithProduct(productID), WithCause(err))
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.Is(err, catalog.ErrUnavailable) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

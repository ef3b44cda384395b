package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type ResilientOptions struct {
	// MaxRetries is the number of extra attempts after the first failure.
	MaxRetries int
	Backoff    time.Duration
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func DefaultResilientOptions() ResilientOptions {
	return ResilientOptions{
		MaxRetries:       2,
		Backoff:          50 * time.Millisecond,
		FailureThreshold: 5,
		OpenTimeout:      10 * time.Second,
	}
}

// Resilient wraps a Directory with a circuit breaker, bounded retries and
// request coalescing. A missing product is an answer, not a failure: it is
// neither retried nor counted against the breaker.
type Resilient struct {
	next   Directory
	cb     *gobreaker.CircuitBreaker[*domain.Product]
	sfg    singleflight.Group
	opts   ResilientOptions
	logger *zap.Logger
}

func NewResilient(next Directory, opts ResilientOptions, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 1
	}

	r := &Resilient{next: next, opts: opts, logger: logger}
	r.cb = gobreaker.NewCircuitBreaker[*domain.Product](gobreaker.Settings{
		Name:        "product-directory",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrProductNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return r
}

func (r *Resilient) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	v, err, _ := r.sfg.Do(id, func() (interface{}, error) {
		return r.fetch(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	// coalesced callers must not share one product value
	product := *v.(*domain.Product)
	return &product, nil
}

func (r *Resilient) fetch(ctx context.Context, id string) (*domain.Product, error) {
	var lastErr error
	for attempt := 0; attempt <= r.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.opts.Backoff * time.Duration(attempt)):
			}
		}

		product, err := r.cb.Execute(func() (*domain.Product, error) {
			return r.next.GetProductByID(ctx, id)
		})
		if err == nil {
			return product, nil
		}
		if errors.Is(err, ErrProductNotFound) {
			return nil, err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.Join(ErrUnavailable, err)
		}
		if ctx.Err() != nil {
			return nil, err
		}

		lastErr = err
		r.logger.Debug("product lookup failed",
			zap.String("product_id", id),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, lastErr
}

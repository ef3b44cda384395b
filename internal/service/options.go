package service

import (
	"time"

	"go.uber.org/zap"
)

const DefaultMaxQuantity = 99

type settings struct {
	now         func() time.Time
	maxQuantity int
	logger      *zap.Logger
}

// Option configures CartService, Validator and CheckoutService.
type Option func(*settings)

func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

func WithMaxQuantity(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxQuantity = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		now:         time.Now,
		maxQuantity: DefaultMaxQuantity,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

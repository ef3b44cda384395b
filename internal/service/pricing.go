package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
)

type DiscountKind string

const (
	DiscountNone       DiscountKind = ""
	DiscountPercentage DiscountKind = "percent"
	DiscountFixed      DiscountKind = "fixed"
)

// Discount is the coupon applied to every summary. Fixed values are in cents.
type Discount struct {
	Kind  DiscountKind
	Value int64
}

// ParseDiscount reads "percent:<0-100>" or "fixed:<cents>"; an empty string means no discount.
func ParseDiscount(s string) (Discount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Discount{}, nil
	}

	kind, raw, ok := strings.Cut(s, ":")
	if !ok {
		return Discount{}, fmt.Errorf("invalid discount %q: expected kind:value", s)
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return Discount{}, fmt.Errorf("invalid discount value %q: %w", raw, err)
	}

	switch DiscountKind(strings.ToLower(strings.TrimSpace(kind))) {
	case DiscountPercentage:
		if value < 0 || value > 100 {
			return Discount{}, fmt.Errorf("percentage discount must be within 0-100, got %d", value)
		}
		return Discount{Kind: DiscountPercentage, Value: value}, nil
	case DiscountFixed:
		if value < 0 {
			return Discount{}, fmt.Errorf("fixed discount must not be negative, got %d", value)
		}
		return Discount{Kind: DiscountFixed, Value: value}, nil
	default:
		return Discount{}, fmt.Errorf("unknown discount kind %q", kind)
	}
}

// Amount is the discount for total, never more than total.
func (d Discount) Amount(total int64) int64 {
	var amount int64
	switch d.Kind {
	case DiscountPercentage:
		amount = total * d.Value / 100
	case DiscountFixed:
		amount = d.Value
	}
	if amount > total {
		amount = total
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

// Summarize prices items. It reads nothing but its arguments.
func Summarize(items []domain.SnapshotItem, d Discount) domain.CartSummary {
	var summary domain.CartSummary
	for _, item := range items {
		summary.TotalItems += item.Quantity
		summary.TotalPriceCents += item.SubtotalCents
	}
	summary.DiscountAmountCents = d.Amount(summary.TotalPriceCents)
	summary.FinalPriceCents = summary.TotalPriceCents - summary.DiscountAmountCents
	if summary.FinalPriceCents < 0 {
		summary.FinalPriceCents = 0
	}
	return summary
}

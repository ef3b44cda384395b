package domain

import "time"

// SnapshotItem is a line item joined with product data at reconciliation time.
type SnapshotItem struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	ImageURL       string `json:"image_url,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Stock          int    `json:"stock"`
	SubtotalCents  int64  `json:"subtotal_cents"`
	Selected       bool   `json:"selected"`
}

func NewSnapshotItem(item CartLineItem, product *Product, selected bool) SnapshotItem {
	return SnapshotItem{
		ProductID:      item.ProductID,
		ProductName:    product.Name,
		ImageURL:       product.ImageURL,
		Quantity:       item.Quantity,
		UnitPriceCents: product.PriceCents,
		Stock:          product.Stock,
		SubtotalCents:  product.PriceCents * int64(item.Quantity),
		Selected:       selected,
	}
}

// CartSnapshot represents the cart joined with the catalog at one moment.
type CartSnapshot struct {
	Items      []SnapshotItem `json:"items"`
	CapturedAt time.Time      `json:"captured_at"`
}

func (s CartSnapshot) Selected() []SnapshotItem {
	out := make([]SnapshotItem, 0, len(s.Items))
	for _, item := range s.Items {
		if item.Selected {
			out = append(out, item)
		}
	}
	return out
}

type CartSummary struct {
	TotalItems          int   `json:"total_items"`
	TotalPriceCents     int64 `json:"total_price_cents"`
	DiscountAmountCents int64 `json:"discount_amount_cents"`
	FinalPriceCents     int64 `json:"final_price_cents"`
}

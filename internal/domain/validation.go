package domain

// InvalidReason says why a line item was dropped during validation.
type InvalidReason string

const (
	InvalidReasonNotFound     InvalidReason = "not_found"
	InvalidReasonOutOfStock   InvalidReason = "out_of_stock"
	InvalidReasonLookupFailed InvalidReason = "lookup_failed"
	// only reported on session re-validation, where quantities are never adjusted
	InvalidReasonInsufficient InvalidReason = "insufficient_stock"
)

type InvalidItem struct {
	ProductID string        `json:"product_id"`
	Quantity  int           `json:"quantity"`
	Reason    InvalidReason `json:"reason"`
	Err       error         `json:"-"`
}

type StockAdjustment struct {
	ProductID string       `json:"product_id"`
	Requested int          `json:"requested"`
	Available int          `json:"available"`
	Item      SnapshotItem `json:"item"`
	Message   string       `json:"message"`
}

// ValidationResult partitions the scanned line items; every item lands in exactly one list.
type ValidationResult struct {
	ValidItems         []SnapshotItem    `json:"valid_items"`
	InvalidItems       []InvalidItem     `json:"invalid_items"`
	StockAdjustedItems []StockAdjustment `json:"stock_adjusted_items"`
}

// Snapshot returns the surviving items: valid ones first, then the adjusted ones.
func (r *ValidationResult) Snapshot() []SnapshotItem {
	out := make([]SnapshotItem, 0, len(r.ValidItems)+len(r.StockAdjustedItems))
	out = append(out, r.ValidItems...)
	for _, adj := range r.StockAdjustedItems {
		out = append(out, adj.Item)
	}
	return out
}

func (r *ValidationResult) Changed() bool {
	return len(r.InvalidItems) > 0 || len(r.StockAdjustedItems) > 0
}

// StockIssue is a problem found when a stored checkout session is re-validated.
type StockIssue struct {
	ProductID string        `json:"product_id"`
	Requested int           `json:"requested"`
	Available int           `json:"available"`
	Reason    InvalidReason `json:"reason,omitempty"`
	Message   string        `json:"message"`
	// Retryable marks issues caused by a catalog outage rather than by the product.
	Retryable bool  `json:"retryable"`
	Err       error `json:"-"`
}

type PriceChange struct {
	ProductID     string `json:"product_id"`
	PreviousCents int64  `json:"previous_cents"`
	CurrentCents  int64  `json:"current_cents"`
}

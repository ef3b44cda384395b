package domain

// Product is the catalog view the cart reconciles against. Prices are in cents.
type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
	ImageURL   string `json:"image_url"`
}

// WellFormed reports whether the product record can be trusted for id.
func (p *Product) WellFormed(id string) bool {
	return p != nil &&
		p.ID != "" &&
		p.ID == id &&
		p.Name != "" &&
		p.PriceCents >= 0 &&
		p.Stock >= 0
}

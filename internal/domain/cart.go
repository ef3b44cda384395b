package domain

import (
	"sort"
	"time"
)

// Cart is the persisted state of one user's cart: line items keyed by product id
// and the selection map used to pick items for checkout.
type Cart struct {
	UserID     string                  `json:"user_id" bson:"_id"`
	Items      map[string]CartLineItem `json:"items" bson:"items"`
	Selections map[string]bool         `json:"selections" bson:"selections"`
	UpdatedAt  time.Time               `json:"updated_at" bson:"updated_at"`
}

type CartLineItem struct {
	ProductID  string    `json:"product_id" bson:"product_id"`
	Quantity   int       `json:"quantity" bson:"quantity"`
	SelectedAt time.Time `json:"selected_at" bson:"selected_at"`
}

func NewCart(userID string) *Cart {
	return &Cart{
		UserID:     userID,
		Items:      make(map[string]CartLineItem),
		Selections: make(map[string]bool),
	}
}

// Normalize makes nil maps usable and drops selection entries whose item is gone.
func (c *Cart) Normalize() {
	if c.Items == nil {
		c.Items = make(map[string]CartLineItem)
	}
	if c.Selections == nil {
		c.Selections = make(map[string]bool)
	}
	for id := range c.Selections {
		if _, ok := c.Items[id]; !ok {
			delete(c.Selections, id)
		}
	}
}

// Ordered returns line items by selectedAt, then product id.
func (c *Cart) Ordered() []CartLineItem {
	items := make([]CartLineItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].SelectedAt.Equal(items[j].SelectedAt) {
			return items[i].SelectedAt.Before(items[j].SelectedAt)
		}
		return items[i].ProductID < items[j].ProductID
	})
	return items
}

// SelectedIDs returns the ids of present items whose selection flag is set, in cart order.
func (c *Cart) SelectedIDs() []string {
	ids := make([]string, 0, len(c.Selections))
	for _, item := range c.Ordered() {
		if c.Selections[item.ProductID] {
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

// TotalQuantity is the badge count shown on the cart tab.
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

func (c *Cart) Remove(productID string) {
	delete(c.Items, productID)
	delete(c.Selections, productID)
}

func (c *Cart) Clone() *Cart {
	out := &Cart{
		UserID:     c.UserID,
		Items:      make(map[string]CartLineItem, len(c.Items)),
		Selections: make(map[string]bool, len(c.Selections)),
		UpdatedAt:  c.UpdatedAt,
	}
	for k, v := range c.Items {
		out.Items[k] = v
	}
	for k, v := range c.Selections {
		out.Selections[k] = v
	}
	return out
}

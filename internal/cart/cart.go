package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"PharmaStore/internal/catalog"
)

var ErrNotFound = errors.New("cart not found")

// Item is one cart line. It keeps a denormalized snapshot of the product
// as it looked when added, plus the unit price used for the running total.
type Item struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"product_id"`
	Product        catalog.Product `json:"product"`
	Quantity       int             `json:"quantity"`
	UnitPriceCents int64           `json:"unit_price_cents"`
}

// Cart is the per-user pending selection. One cart per user, created
// lazily on the first add.
type Cart struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Items      []Item    `json:"items"`
	TotalCents int64     `json:"total_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newCart(userID string, now time.Time) Cart {
	return Cart{
		ID:        "c_" + uuid.NewString(),
		UserID:    userID,
		Items:     []Item{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// add merges qty into an existing line for the product or appends a new
// line, then recomputes the total.
func (c *Cart) add(p catalog.Product, qty int, now time.Time) {
	for i := range c.Items {
		if c.Items[i].ProductID == p.ID {
			c.Items[i].Quantity += qty
			c.recompute(now)
			return
		}
	}

	c.Items = append(c.Items, Item{
		ID:             "ci_" + uuid.NewString(),
		ProductID:      p.ID,
		Product:        p,
		Quantity:       qty,
		UnitPriceCents: p.PriceCents,
	})
	c.recompute(now)
}

// remove drops the line with the given id. Reports whether it existed.
func (c *Cart) remove(itemID string, now time.Time) bool {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.recompute(now)
			return true
		}
	}
	return false
}

func (c *Cart) recompute(now time.Time) {
	var total int64
	for _, it := range c.Items {
		total += it.UnitPriceCents * int64(it.Quantity)
	}
	c.TotalCents = total
	c.UpdatedAt = now
}

func (c Cart) clone() Cart {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}

// Store is the cart repository. AddItem and RemoveItem are single atomic
// operations so that rapid repeated calls cannot interleave a
// read-modify-write. Take atomically claims a cart for checkout; Restore
// puts it back if the checkout cannot complete.
type Store interface {
	Get(ctx context.Context, userID string) (Cart, bool, error)
	AddItem(ctx context.Context, userID string, p catalog.Product, qty int) (Cart, error)
	RemoveItem(ctx context.Context, userID, itemID string) (Cart, error)
	Take(ctx context.Context, userID string) (Cart, bool, error)
	Restore(ctx context.Context, c Cart) error
	PruneExpired(ctx context.Context, cutoff time.Time) (int, error)
	Ping(ctx context.Context) error
}

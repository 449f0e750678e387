package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Category string

const (
	CategoryMedicines    Category = "medicines"
	CategoryWellness     Category = "wellness"
	CategoryPersonalCare Category = "personal-care"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryMedicines, CategoryWellness, CategoryPersonalCare:
		return true
	}
	return false
}

type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	PriceCents    int64     `json:"price_cents"`
	Category      Category  `json:"category"`
	ImageURL      string    `json:"image_url"`
	StockQuantity int       `json:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// InStock is derived from the stock count, never stored.
func (p Product) InStock() bool { return p.StockQuantity > 0 }

func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		InStock bool `json:"in_stock"`
	}{plain(p), p.InStock()})
}

// Filter narrows a product listing. Zero values match everything.
type Filter struct {
	// Category must match exactly when set.
	Category Category
	// Search matches case-insensitively against name or description.
	Search string
}

// Store is the product repository. DecrementStock applies every line or
// none; it backs the checkout path.
type Store interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	Get(ctx context.Context, id string) (Product, bool, error)
	Create(ctx context.Context, p Product) error
	Update(ctx context.Context, p Product) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	DecrementStock(ctx context.Context, lines map[string]int) (map[string]Product, error)
	Ping(ctx context.Context) error
}

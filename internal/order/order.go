package order

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrCartEmpty         = errors.New("cart not found or empty")
	ErrBadTransition     = errors.New("illegal status transition")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// transitions holds the allowed successors of each status. Cancellation is
// possible from any non-terminal state; delivered and cancelled are final.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered, StatusCancelled},
	StatusDelivered: {},
	StatusCancelled: {},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Address is the shipping destination, embedded in the order.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

func (a Address) Validate() string {
	switch {
	case strings.TrimSpace(a.Street) == "":
		return "street required"
	case strings.TrimSpace(a.City) == "":
		return "city required"
	case strings.TrimSpace(a.State) == "":
		return "state required"
	case strings.TrimSpace(a.Zip) == "":
		return "zip required"
	case strings.TrimSpace(a.Country) == "":
		return "country required"
	}
	return ""
}

// Item is an order line frozen at checkout time.
type Item struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Order is the immutable snapshot of a cart taken at checkout; only its
// status moves afterwards.
type Order struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Items           []Item    `json:"items"`
	TotalCents      int64     `json:"total_cents"`
	Status          Status    `json:"status"`
	ShippingAddress Address   `json:"shipping_address"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Store is the order repository. CreateFromCart converts the user's cart
// into an order in a single atomic operation: it snapshots the lines at
// current catalog prices, decrements stock, and removes the cart. Nothing
// is left half-done on failure.
type Store interface {
	CreateFromCart(ctx context.Context, userID string, addr Address) (Order, error)
	Get(ctx context.Context, id string) (Order, bool, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, next Status) (Order, error)
	Ping(ctx context.Context) error
}

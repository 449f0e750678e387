package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"PharmaStore/internal/cart"
	"PharmaStore/internal/catalog"
)

// CartSource is the slice of the cart store checkout needs: atomically
// claim a cart, and put it back if the conversion cannot complete.
type CartSource interface {
	Take(ctx context.Context, userID string) (cart.Cart, bool, error)
	Restore(ctx context.Context, c cart.Cart) error
}

// StockSource decrements stock for all lines or none, returning the
// products after the decrement for price snapshotting.
type StockSource interface {
	DecrementStock(ctx context.Context, lines map[string]int) (map[string]catalog.Product, error)
}

type MemStore struct {
	mu    sync.RWMutex
	m     map[string]Order
	carts CartSource
	stock StockSource
}

func NewMemStore(carts CartSource, stock StockSource) *MemStore {
	return &MemStore{
		m:     make(map[string]Order),
		carts: carts,
		stock: stock,
	}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

// CreateFromCart claims the cart first so a concurrent checkout of the
// same cart cannot run twice, then decrements stock all-or-nothing. On a
// stock failure the cart is restored untouched.
func (s *MemStore) CreateFromCart(ctx context.Context, userID string, addr Address) (Order, error) {
	c, ok, err := s.carts.Take(ctx, userID)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, ErrCartEmpty
	}
	if len(c.Items) == 0 {
		_ = s.carts.Restore(ctx, c)
		return Order{}, ErrCartEmpty
	}

	lines := make(map[string]int, len(c.Items))
	for _, it := range c.Items {
		lines[it.ProductID] = it.Quantity
	}

	products, err := s.stock.DecrementStock(ctx, lines)
	if err != nil {
		if restoreErr := s.carts.Restore(ctx, c); restoreErr != nil {
			return Order{}, restoreErr
		}
		if errors.Is(err, catalog.ErrInsufficientStock) || errors.Is(err, catalog.ErrNotFound) {
			return Order{}, ErrInsufficientStock
		}
		return Order{}, err
	}

	now := time.Now().UTC()
	o := Order{
		ID:              "o_" + uuid.NewString(),
		UserID:          userID,
		Status:          StatusPending,
		ShippingAddress: addr,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, it := range c.Items {
		p := products[it.ProductID]
		o.Items = append(o.Items, Item{
			ProductID:      p.ID,
			Name:           p.Name,
			Quantity:       it.Quantity,
			UnitPriceCents: p.PriceCents,
		})
		o.TotalCents += p.PriceCents * int64(it.Quantity)
	}

	s.mu.Lock()
	s.m[o.ID] = o
	s.mu.Unlock()

	return o, nil
}

func (s *MemStore) Get(ctx context.Context, id string) (Order, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.m[id]
	return o, ok, nil
}

func (s *MemStore) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Order{}
	for _, o := range s.m {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemStore) ListAll(ctx context.Context) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Order, 0, len(s.m))
	for _, o := range s.m {
		out = append(out, o)
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(orders []Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func (s *MemStore) UpdateStatus(ctx context.Context, id string, next Status) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.m[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if !o.Status.CanTransitionTo(next) {
		return Order{}, ErrBadTransition
	}

	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	s.m[id] = o
	return o, nil
}

package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type MemStore struct {
	mu sync.RWMutex
	m  map[string]Product
}

func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string]Product)}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) List(ctx context.Context, f Filter) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, 0, len(s.m))
	for _, p := range s.m {
		if matches(p, f) {
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matches(p Product, f Filter) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	return true
}

func (s *MemStore) Get(ctx context.Context, id string) (Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.m[id]
	return p, ok, nil
}

func (s *MemStore) Create(ctx context.Context, p Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.m[p.ID] = p
	return nil
}

func (s *MemStore) Update(ctx context.Context, p Product) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.m[p.ID]
	if !ok {
		return false, nil
	}

	p.CreatedAt = prev.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.m[p.ID] = p
	return true, nil
}

func (s *MemStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[id]; !ok {
		return false, nil
	}
	delete(s.m, id)
	return true, nil
}

// DecrementStock takes product id -> quantity and applies all lines under
// one lock, or none of them. The returned snapshot reflects the products
// after the decrement, at their current prices.
func (s *MemStore) DecrementStock(ctx context.Context, lines map[string]int) (map[string]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, qty := range lines {
		p, ok := s.m[id]
		if !ok {
			return nil, ErrNotFound
		}
		if p.StockQuantity < qty {
			return nil, ErrInsufficientStock
		}
	}

	now := time.Now().UTC()
	snap := make(map[string]Product, len(lines))
	for id, qty := range lines {
		p := s.m[id]
		p.StockQuantity -= qty
		p.UpdatedAt = now
		s.m[id] = p
		snap[id] = p
	}
	return snap, nil
}

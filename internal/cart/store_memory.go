package cart

import (
	"context"
	"sync"
	"time"

	"PharmaStore/internal/catalog"
)

type MemStore struct {
	mu sync.RWMutex
	m  map[string]Cart // keyed by user id
}

func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string]Cart)}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Get(ctx context.Context, userID string) (Cart, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.m[userID]
	if !ok {
		return Cart{}, false, nil
	}
	return c.clone(), true, nil
}

func (s *MemStore) AddItem(ctx context.Context, userID string, p catalog.Product, qty int) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	c, ok := s.m[userID]
	if !ok {
		c = newCart(userID, now)
	} else {
		c = c.clone()
	}

	c.add(p, qty, now)
	s.m[userID] = c
	return c.clone(), nil
}

func (s *MemStore) RemoveItem(ctx context.Context, userID, itemID string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.m[userID]
	if !ok {
		return Cart{}, ErrNotFound
	}

	c = c.clone()
	if !c.remove(itemID, time.Now().UTC()) {
		return Cart{}, ErrNotFound
	}
	s.m[userID] = c
	return c.clone(), nil
}

func (s *MemStore) Take(ctx context.Context, userID string) (Cart, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.m[userID]
	if !ok {
		return Cart{}, false, nil
	}
	delete(s.m, userID)
	return c, true, nil
}

func (s *MemStore) Restore(ctx context.Context, c Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[c.UserID] = c
	return nil
}

func (s *MemStore) PruneExpired(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for uid, c := range s.m {
		if c.UpdatedAt.Before(cutoff) {
			delete(s.m, uid)
			n++
		}
	}
	return n, nil
}

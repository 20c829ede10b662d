package orders

import (
	"context"
	"sync"
	"time"
)

// MemStore keeps orders in process memory. Every status change happens under
// the write lock, which makes CompareAndSetStatus atomic per order.
type MemStore struct {
	mu    sync.RWMutex
	byID  map[string]*Order
	order []string
}

func NewMemStore() *MemStore {
	return &MemStore{byID: make(map[string]*Order)}
}

func (s *MemStore) Create(_ context.Context, o Order) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[o.ID]; ok {
		return Order{}, ErrDuplicateID
	}
	stored := o.clone()
	s.byID[o.ID] = &stored
	s.order = append(s.order, o.ID)
	return stored.clone(), nil
}

func (s *MemStore) Get(_ context.Context, id string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o.clone(), nil
}

func (s *MemStore) List(_ context.Context, f Filter) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, 0, len(s.order))
	for _, id := range s.order {
		o := s.byID[id]
		if f.Match(*o) {
			out = append(out, o.clone())
		}
	}
	return out, nil
}

func (s *MemStore) UpdateStatus(_ context.Context, id string, to Status, at time.Time) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	o.Status = to
	o.UpdatedAt = at
	return o.clone(), nil
}

func (s *MemStore) CompareAndSetStatus(_ context.Context, id string, from, to Status, at time.Time) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if o.Status != from {
		return o.clone(), ErrStatusConflict
	}
	o.Status = to
	o.UpdatedAt = at
	return o.clone(), nil
}

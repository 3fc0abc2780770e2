package payment

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[int]PaymentDetail
	nextID int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[int]PaymentDetail), nextID: 1}
}

// List returns all records ordered by id.
func (s *MemoryStore) List(_ context.Context) ([]PaymentDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PaymentDetail, 0, len(s.items))
	for _, d := range s.items {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDetailID < out[j].PaymentDetailID })
	return out, nil
}

// Get returns the record with id, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id int) (PaymentDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.items[id]
	if !ok {
		return PaymentDetail{}, ErrNotFound
	}
	return d, nil
}

// Create stores d, assigning the next free id when d has none. An id
// already in use yields ErrConflict.
func (s *MemoryStore) Create(_ context.Context, d *PaymentDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.PaymentDetailID == 0 {
		for {
			if _, taken := s.items[s.nextID]; !taken {
				break
			}
			s.nextID++
		}
		d.PaymentDetailID = s.nextID
		s.nextID++
	} else if _, exists := s.items[d.PaymentDetailID]; exists {
		return ErrConflict
	}
	s.items[d.PaymentDetailID] = *d
	return nil
}

// Update replaces the record with d's id, or returns ErrNotFound.
func (s *MemoryStore) Update(_ context.Context, d PaymentDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[d.PaymentDetailID]; !ok {
		return ErrNotFound
	}
	s.items[d.PaymentDetailID] = d
	return nil
}

// Delete removes id, or returns ErrNotFound.
func (s *MemoryStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)

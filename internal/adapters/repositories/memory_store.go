package repositories

import (
	"cmp"
	"context"
	"delivery-batch-service/internal/domain"
	"fmt"
	"slices"
	"sync"
)

// In-memory implementation of the OrderRepository and BatchRepository ports.
// Used by tests and local runs without Postgres. Claims follow the same
// compare-and-swap rules as the Postgres store.
type MemoryStore struct {
	mu      sync.Mutex
	orders  map[int64]domain.Order
	batches map[string]domain.Batch
}

func NewMemoryStore(orders ...domain.Order) *MemoryStore {
	s := &MemoryStore{
		orders:  make(map[int64]domain.Order, len(orders)),
		batches: make(map[string]domain.Batch),
	}
	for _, o := range orders {
		s.orders[o.ID] = cloneOrder(o)
	}
	return s
}

// PutOrder inserts or replaces an order.
func (s *MemoryStore) PutOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = cloneOrder(o)
}

// Order returns a copy of one stored order.
func (s *MemoryStore) Order(id int64) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return cloneOrder(o), ok
}

// BatchIDs returns the ids of all stored batches, sorted.
func (s *MemoryStore) BatchIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.batches))
	for id := range s.batches {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *MemoryStore) GetOrders(ctx context.Context, ids []int64) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := s.orders[id]; ok {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (s *MemoryStore) ListUnbatchedOrders(ctx context.Context, zoneID *int64, limit int) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Order, 0)
	for _, o := range s.orders {
		if !o.IsBatchable() {
			continue
		}
		if zoneID != nil && o.ZoneID != *zoneID {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	slices.SortFunc(out, func(a, b domain.Order) int { return cmp.Compare(a.ID, b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListZonesWithUnbatchedOrders(ctx context.Context, minOrders int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[int64]int)
	for _, o := range s.orders {
		if o.IsBatchable() {
			counts[o.ZoneID]++
		}
	}

	zones := make([]int64, 0, len(counts))
	for z, n := range counts {
		if n >= minOrders {
			zones = append(zones, z)
		}
	}
	slices.Sort(zones)
	return zones, nil
}

func (s *MemoryStore) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	if batch == nil {
		return fmt.Errorf("create batch: %w: batch is nil", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.ID]; exists {
		return fmt.Errorf("create batch: %w: batch %s already exists", domain.ErrConflict, batch.ID)
	}
	if err := s.claimable(batch.OrderIDs); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}

	s.claim(batch.ID, batch.OrderIDs)
	s.batches[batch.ID] = cloneBatch(*batch)
	return nil
}

func (s *MemoryStore) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, fmt.Errorf("get batch %s: %w", id, domain.ErrNotFound)
	}
	out := cloneBatch(b)
	return &out, nil
}

func (s *MemoryStore) ReplaceBatchOrders(ctx context.Context, batch *domain.Batch, added, removed []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batch.ID]; !ok {
		return fmt.Errorf("replace batch orders %s: %w", batch.ID, domain.ErrNotFound)
	}
	if err := s.claimable(added); err != nil {
		return fmt.Errorf("replace batch orders %s: %w", batch.ID, err)
	}

	s.release(removed)
	s.claim(batch.ID, added)
	s.batches[batch.ID] = cloneBatch(*batch)
	return nil
}

func (s *MemoryStore) UpdateBatchStatus(ctx context.Context, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batch.ID]; !ok {
		return fmt.Errorf("update batch status %s: %w", batch.ID, domain.ErrNotFound)
	}

	if batch.Status == domain.BatchStatusCancelled {
		s.release(batch.OrderIDs)
	} else if st, ok := domain.OrderStatusFor(batch.Status); ok {
		for _, id := range batch.OrderIDs {
			if o, ok := s.orders[id]; ok {
				o.Status = st
				s.orders[id] = o
			}
		}
	}

	s.batches[batch.ID] = cloneBatch(*batch)
	return nil
}

func (s *MemoryStore) DissolveBatch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("dissolve batch %s: %w", id, domain.ErrNotFound)
	}
	s.release(b.OrderIDs)
	delete(s.batches, id)
	return nil
}

// MergeBatches dissolves the pending source batches and creates merged in one
// critical section. On any error nothing is changed.
func (s *MemoryStore) MergeBatches(ctx context.Context, sourceIDs []string, merged *domain.Batch) error {
	if merged == nil {
		return fmt.Errorf("merge batches: %w: batch is nil", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sources := make(map[string]bool, len(sourceIDs))
	var released []int64
	for _, id := range sourceIDs {
		b, ok := s.batches[id]
		if !ok {
			return fmt.Errorf("merge batches: batch %s: %w", id, domain.ErrNotFound)
		}
		if b.Status != domain.BatchStatusPending {
			return fmt.Errorf("merge batches: %w: batch %s is %s", domain.ErrConflict, id, b.Status)
		}
		sources[id] = true
		released = append(released, b.OrderIDs...)
	}
	if _, exists := s.batches[merged.ID]; exists {
		return fmt.Errorf("merge batches: %w: batch %s already exists", domain.ErrConflict, merged.ID)
	}

	// Orders held by a source batch count as available.
	for _, id := range merged.OrderIDs {
		o, ok := s.orders[id]
		if !ok {
			return fmt.Errorf("merge batches: order %d: %w", id, domain.ErrNotFound)
		}
		if o.BatchID != nil && sources[*o.BatchID] {
			continue
		}
		if !o.IsBatchable() {
			return fmt.Errorf("merge batches: %w: order %d is no longer available", domain.ErrConflict, id)
		}
	}

	s.release(released)
	for _, id := range sourceIDs {
		delete(s.batches, id)
	}
	s.claim(merged.ID, merged.OrderIDs)
	s.batches[merged.ID] = cloneBatch(*merged)
	return nil
}

// claimable fails with ErrConflict unless every order exists, is confirmed
// and is unbatched. Caller holds mu.
func (s *MemoryStore) claimable(ids []int64) error {
	for _, id := range ids {
		o, ok := s.orders[id]
		if !ok {
			return fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
		}
		if !o.IsBatchable() {
			return fmt.Errorf("%w: order %d is no longer available", domain.ErrConflict, id)
		}
	}
	return nil
}

func (s *MemoryStore) claim(batchID string, ids []int64) {
	for _, id := range ids {
		o := s.orders[id]
		bid := batchID
		o.BatchID = &bid
		o.Status = domain.OrderStatusBatched
		s.orders[id] = o
	}
}

func (s *MemoryStore) release(ids []int64) {
	for _, id := range ids {
		o, ok := s.orders[id]
		if !ok {
			continue
		}
		o.BatchID = nil
		o.Status = domain.OrderStatusConfirmed
		s.orders[id] = o
	}
}

func cloneOrder(o domain.Order) domain.Order {
	if o.BatchID != nil {
		id := *o.BatchID
		o.BatchID = &id
	}
	if o.Window != nil {
		w := *o.Window
		o.Window = &w
	}
	return o
}

func cloneBatch(b domain.Batch) domain.Batch {
	b.OrderIDs = slices.Clone(b.OrderIDs)
	if b.DriverID != nil {
		d := *b.DriverID
		b.DriverID = &d
	}
	if b.AssignedAt != nil {
		t := *b.AssignedAt
		b.AssignedAt = &t
	}
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		b.CompletedAt = &t
	}
	return b
}

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"dlmm-profit-lab/internal/domain"
	"dlmm-profit-lab/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by composite key
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.Position),
	}
}

// positionKey generates a unique key for a stored position.
func positionKey(runID, address string) string {
	return fmt.Sprintf("%s|%s", runID, address)
}

// clonePosition deep-copies a position through a JSON round trip so callers
// never share the stored transaction slices.
func clonePosition(p *domain.Position) (*domain.Position, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("clone position: %w", err)
	}
	var out domain.Position
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone position: %w", err)
	}
	return &out, nil
}

// InsertBulk adds all positions of one run atomically. Fails the entire
// batch on any duplicate (run_id, address).
func (s *PositionStore) InsertBulk(_ context.Context, runID string, positions []*domain.Position) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(positions) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(positions))

	for _, p := range positions {
		if p == nil || p.Address == "" {
			return storage.ErrInvalidInput
		}
		key := positionKey(runID, p.Address)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range positions {
		clone, err := clonePosition(p)
		if err != nil {
			return err
		}
		s.data[positionKey(runID, p.Address)] = clone
	}

	return nil
}

// GetByRun retrieves all positions of a run, ordered by opening time ASC.
func (s *PositionStore) GetByRun(_ context.Context, runID string) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := runID + "|"
	var result []*domain.Position
	for key, p := range s.data {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			clone, err := clonePosition(p)
			if err != nil {
				return nil, err
			}
			result = append(result, clone)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].OpenedAt.Equal(result[j].OpenedAt) {
			return result[i].OpenedAt.Before(result[j].OpenedAt)
		}
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// GetByAddress retrieves one position of a run. Returns ErrNotFound if the
// run never saw that address.
func (s *PositionStore) GetByAddress(_ context.Context, runID, address string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[positionKey(runID, address)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return clonePosition(p)
}

var _ storage.PositionStore = (*PositionStore)(nil)

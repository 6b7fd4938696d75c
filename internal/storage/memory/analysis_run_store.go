package memory

import (
	"context"
	"sort"
	"sync"

	"dlmm-profit-lab/internal/domain"
	"dlmm-profit-lab/internal/storage"
)

// AnalysisRunStore is an in-memory implementation of storage.AnalysisRunStore.
type AnalysisRunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AnalysisRun // keyed by run_id
}

// NewAnalysisRunStore creates a new in-memory analysis run store.
func NewAnalysisRunStore() *AnalysisRunStore {
	return &AnalysisRunStore{
		data: make(map[string]*domain.AnalysisRun),
	}
}

// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
func (s *AnalysisRunStore) Insert(_ context.Context, run *domain.AnalysisRun) error {
	if run == nil || run.RunID == "" || run.Wallet == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	runCopy := *run
	s.data[run.RunID] = &runCopy
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *AnalysisRunStore) GetByID(_ context.Context, runID string) (*domain.AnalysisRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	runCopy := *run
	return &runCopy, nil
}

// GetByWallet retrieves all runs for a wallet, newest first.
func (s *AnalysisRunStore) GetByWallet(_ context.Context, wallet string) ([]*domain.AnalysisRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AnalysisRun
	for _, run := range s.data {
		if run.Wallet == wallet {
			runCopy := *run
			result = append(result, &runCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.After(result[j].StartedAt)
		}
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

var _ storage.AnalysisRunStore = (*AnalysisRunStore)(nil)

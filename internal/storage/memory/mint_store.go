// Package memory provides in-memory stores used in tests and when no
// database is configured.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"novatok-explorer/internal/domain"
	"novatok-explorer/internal/storage"
)

// MintStore is an in-memory implementation of storage.MintStore.
type MintStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MintRecord
}

// NewMintStore creates a new in-memory mint store.
func NewMintStore() *MintStore {
	return &MintStore{
		data: make(map[string]*domain.MintRecord),
	}
}

// Compile-time interface check.
var _ storage.MintStore = (*MintStore)(nil)

// Insert adds a new pending mint. Returns ErrDuplicateKey if tx_hash exists.
func (s *MintStore) Insert(_ context.Context, m *domain.MintRecord) error {
	if err := storage.ValidateMint(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.TxHash]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[m.TxHash] = cloneMint(m)
	return nil
}

// GetByTxHash retrieves a mint by transaction hash.
func (s *MintStore) GetByTxHash(_ context.Context, txHash string) (*domain.MintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[txHash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneMint(m), nil
}

// Settle moves a mint to a final status.
func (s *MintStore) Settle(_ context.Context, txHash string, st storage.Settlement) error {
	if err := storage.ValidateSettlement(st); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.data[txHash]
	if !ok {
		return storage.ErrNotFound
	}
	m.Status = st.Status
	m.TokenID = clonePtr(st.TokenID)
	block := st.BlockNumber
	m.BlockNumber = &block
	confirmedAt := st.ConfirmedAt
	m.ConfirmedAt = &confirmedAt
	return nil
}

// ListByRecipient retrieves mints for recipient (case-insensitive), newest first.
func (s *MintStore) ListByRecipient(_ context.Context, recipient string, limit int) ([]*domain.MintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MintRecord
	for _, m := range s.data {
		if strings.EqualFold(m.Recipient, recipient) {
			result = append(result, cloneMint(m))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SubmittedAt != result[j].SubmittedAt {
			return result[i].SubmittedAt > result[j].SubmittedAt
		}
		return result[i].TxHash < result[j].TxHash
	})

	if limit = storage.Limit(limit); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListPending retrieves pending mints, oldest first.
func (s *MintStore) ListPending(_ context.Context) ([]*domain.MintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MintRecord
	for _, m := range s.data {
		if m.Status == domain.MintStatusPending {
			result = append(result, cloneMint(m))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SubmittedAt < result[j].SubmittedAt
	})
	return result, nil
}

func cloneMint(m *domain.MintRecord) *domain.MintRecord {
	c := *m
	c.TokenID = clonePtr(m.TokenID)
	c.BlockNumber = clonePtr(m.BlockNumber)
	c.ConfirmedAt = clonePtr(m.ConfirmedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

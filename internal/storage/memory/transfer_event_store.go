package memory

import (
	"context"
	"sort"
	"sync"

	"novatok-explorer/internal/domain"
	"novatok-explorer/internal/storage"
)

// transferKey is the composite key for transfer event deduplication.
type transferKey struct {
	Contract string
	TxHash   string
	LogIndex uint32
}

// DefaultMaxTransferEvents bounds the in-memory store.
const DefaultMaxTransferEvents = 100_000

// TransferEventStore is an in-memory implementation of storage.TransferEventStore.
// Once maxEvents is reached the oldest inserted events are dropped.
type TransferEventStore struct {
	mu        sync.RWMutex
	data      []*domain.TransferEvent
	keys      map[transferKey]bool
	maxEvents int
}

// TransferStoreOption configures a TransferEventStore.
type TransferStoreOption func(*TransferEventStore)

// WithMaxEvents caps the number of retained events. Values <= 0 keep the default.
func WithMaxEvents(n int) TransferStoreOption {
	return func(s *TransferEventStore) {
		if n > 0 {
			s.maxEvents = n
		}
	}
}

// NewTransferEventStore creates a new in-memory transfer event store.
func NewTransferEventStore(opts ...TransferStoreOption) *TransferEventStore {
	s := &TransferEventStore{
		data:      make([]*domain.TransferEvent, 0),
		keys:      make(map[transferKey]bool),
		maxEvents: DefaultMaxTransferEvents,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface check.
var _ storage.TransferEventStore = (*TransferEventStore)(nil)

// InsertBulk adds events, skipping keys already stored.
func (s *TransferEventStore) InsertBulk(_ context.Context, events []*domain.TransferEvent) error {
	for _, e := range events {
		if e == nil {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		key := transferKey{Contract: e.Contract, TxHash: e.TxHash, LogIndex: e.LogIndex}
		if s.keys[key] {
			continue
		}
		c := *e
		s.data = append(s.data, &c)
		s.keys[key] = true
	}
	s.evictLocked()
	return nil
}

func (s *TransferEventStore) evictLocked() {
	excess := len(s.data) - s.maxEvents
	if excess <= 0 {
		return
	}
	for _, e := range s.data[:excess] {
		delete(s.keys, transferKey{Contract: e.Contract, TxHash: e.TxHash, LogIndex: e.LogIndex})
	}
	kept := make([]*domain.TransferEvent, len(s.data)-excess, cap(s.data))
	copy(kept, s.data[excess:])
	s.data = kept
}

// Len returns the number of retained events.
func (s *TransferEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// GetRecent retrieves the latest events, newest first.
func (s *TransferEventStore) GetRecent(_ context.Context, limit int) ([]*domain.TransferEvent, error) {
	s.mu.RLock()
	result := make([]*domain.TransferEvent, 0, len(s.data))
	for _, e := range s.data {
		c := *e
		result = append(result, &c)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockNumber != result[j].BlockNumber {
			return result[i].BlockNumber > result[j].BlockNumber
		}
		return result[i].LogIndex > result[j].LogIndex
	})

	if limit = storage.Limit(limit); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetByTokenID retrieves one token's history, oldest first.
func (s *TransferEventStore) GetByTokenID(_ context.Context, contract, tokenID string) ([]*domain.TransferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferEvent
	for _, e := range s.data {
		if e.Contract == contract && e.TokenID == tokenID {
			c := *e
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockNumber != result[j].BlockNumber {
			return result[i].BlockNumber < result[j].BlockNumber
		}
		return result[i].LogIndex < result[j].LogIndex
	})
	return result, nil
}

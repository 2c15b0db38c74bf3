package storage

import (
	"context"

	"novatok-explorer/internal/domain"
)

// MintStore provides access to the mints ledger.
type MintStore interface {
	// Insert adds a new pending mint. Returns ErrDuplicateKey if tx_hash exists.
	Insert(ctx context.Context, m *domain.MintRecord) error

	// GetByTxHash retrieves a mint by transaction hash. Returns ErrNotFound if not exists.
	GetByTxHash(ctx context.Context, txHash string) (*domain.MintRecord, error)

	// Settle moves a pending mint to a final status. Returns ErrNotFound if the
	// mint does not exist and ErrInvalidInput if status is not final.
	Settle(ctx context.Context, txHash string, s Settlement) error

	// ListByRecipient retrieves mints for a recipient, newest first.
	ListByRecipient(ctx context.Context, recipient string, limit int) ([]*domain.MintRecord, error)

	// ListPending retrieves all mints still awaiting a receipt, oldest first.
	ListPending(ctx context.Context) ([]*domain.MintRecord, error)
}

// Settlement is the outcome of a mint once its receipt is known.
type Settlement struct {
	Status      domain.MintStatus
	TokenID     *string
	BlockNumber int64
	ConfirmedAt int64 // Unix timestamp in milliseconds
}

// TransferEventStore provides access to transfer_events storage.
type TransferEventStore interface {
	// InsertBulk adds events. Events whose (contract, tx_hash, log_index)
	// is already stored are skipped, so replays are harmless.
	InsertBulk(ctx context.Context, events []*domain.TransferEvent) error

	// GetRecent retrieves the latest events, newest block first.
	GetRecent(ctx context.Context, limit int) ([]*domain.TransferEvent, error)

	// GetByTokenID retrieves the history of one token, oldest first.
	GetByTokenID(ctx context.Context, contract, tokenID string) ([]*domain.TransferEvent, error)
}

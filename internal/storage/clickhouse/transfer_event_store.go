package clickhouse

import (
	"context"
	"fmt"
	"time"

	"novatok-explorer/internal/domain"
	"novatok-explorer/internal/storage"
)

// TransferEventStore implements storage.TransferEventStore using ClickHouse.
type TransferEventStore struct {
	conn *Conn
}

// NewTransferEventStore creates a new TransferEventStore.
func NewTransferEventStore(conn *Conn) *TransferEventStore {
	return &TransferEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TransferEventStore = (*TransferEventStore)(nil)

type transferKey struct {
	contract string
	txHash   string
	logIndex uint32
}

// InsertBulk adds events. Rows already present, in the table or earlier in
// the same batch, are skipped. ReplacingMergeTree collapses any duplicate
// that races past the existence check.
func (s *TransferEventStore) InsertBulk(ctx context.Context, events []*domain.TransferEvent) (err error) {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e == nil {
			return storage.ErrInvalidInput
		}
	}

	start := time.Now()
	defer func() { observe("transfer_insert_bulk", start, err) }()

	stored, err := s.existing(ctx, events)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}

	fresh := make([]*domain.TransferEvent, 0, len(events))
	for _, e := range events {
		k := transferKey{e.Contract, e.TxHash, e.LogIndex}
		if _, dup := stored[k]; dup {
			continue
		}
		stored[k] = struct{}{}
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO transfer_events (
			contract, tx_hash, log_index, block_number,
			from_address, to_address, token_id, kind, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range fresh {
		err = batch.Append(
			e.Contract, e.TxHash, e.LogIndex, e.BlockNumber,
			e.From, e.To, e.TokenID, string(e.Kind()), uint64(e.ObservedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetRecent retrieves the latest events, newest block first.
func (s *TransferEventStore) GetRecent(ctx context.Context, limit int) (_ []*domain.TransferEvent, err error) {
	start := time.Now()
	defer func() { observe("transfer_get_recent", start, err) }()

	query := `
		SELECT contract, tx_hash, log_index, block_number,
		       from_address, to_address, token_id, observed_at
		FROM transfer_events FINAL
		ORDER BY block_number DESC, log_index DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, uint64(storage.Limit(limit)))
	if err != nil {
		return nil, fmt.Errorf("query recent transfers: %w", err)
	}
	defer rows.Close()

	return scanTransferEvents(rows)
}

// GetByTokenID retrieves the history of one token, oldest first.
func (s *TransferEventStore) GetByTokenID(ctx context.Context, contract, tokenID string) (_ []*domain.TransferEvent, err error) {
	start := time.Now()
	defer func() { observe("transfer_get_by_token", start, err) }()

	query := `
		SELECT contract, tx_hash, log_index, block_number,
		       from_address, to_address, token_id, observed_at
		FROM transfer_events FINAL
		WHERE contract = ? AND token_id = ?
		ORDER BY block_number ASC, log_index ASC
	`

	rows, err := s.conn.Query(ctx, query, contract, tokenID)
	if err != nil {
		return nil, fmt.Errorf("query transfers by token: %w", err)
	}
	defer rows.Close()

	return scanTransferEvents(rows)
}

// existing returns the keys of events already stored, in one query.
func (s *TransferEventStore) existing(ctx context.Context, events []*domain.TransferEvent) (map[transferKey]struct{}, error) {
	hashes := make([]string, 0, len(events))
	uniq := make(map[string]struct{}, len(events))
	for _, e := range events {
		if _, ok := uniq[e.TxHash]; !ok {
			uniq[e.TxHash] = struct{}{}
			hashes = append(hashes, e.TxHash)
		}
	}

	query := `
		SELECT DISTINCT contract, tx_hash, log_index FROM transfer_events
		WHERE tx_hash IN (?)
	`

	rows, err := s.conn.Query(ctx, query, hashes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stored := make(map[transferKey]struct{}, len(events))
	for rows.Next() {
		var k transferKey
		if err := rows.Scan(&k.contract, &k.txHash, &k.logIndex); err != nil {
			return nil, err
		}
		stored[k] = struct{}{}
	}
	return stored, rows.Err()
}

// chRows is the subset of driver.Rows the scanners need.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTransferEvents(rows chRows) ([]*domain.TransferEvent, error) {
	var events []*domain.TransferEvent

	for rows.Next() {
		var e domain.TransferEvent
		var observedAt uint64

		err := rows.Scan(
			&e.Contract, &e.TxHash, &e.LogIndex, &e.BlockNumber,
			&e.From, &e.To, &e.TokenID, &observedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transfer event row: %w", err)
		}

		e.ObservedAt = int64(observedAt)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer event rows: %w", err)
	}

	return events, nil
}

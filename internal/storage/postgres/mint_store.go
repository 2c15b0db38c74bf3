package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"novatok-explorer/internal/domain"
	"novatok-explorer/internal/storage"
)

// MintStore implements storage.MintStore using PostgreSQL.
type MintStore struct {
	pool *Pool
}

// NewMintStore creates a new MintStore.
func NewMintStore(pool *Pool) *MintStore {
	return &MintStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MintStore = (*MintStore)(nil)

const mintColumns = `
	tx_hash, contract, recipient, token_uri, method, status,
	token_id, block_number, submitted_at, confirmed_at
`

// Insert adds a new pending mint. Returns ErrDuplicateKey if tx_hash exists.
func (s *MintStore) Insert(ctx context.Context, m *domain.MintRecord) (err error) {
	if err := storage.ValidateMint(m); err != nil {
		return err
	}
	start := time.Now()
	defer func() { observe("mint_insert", start, err) }()

	query := `INSERT INTO mints (` + mintColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.pool.Exec(ctx, query,
		m.TxHash, m.Contract, m.Recipient, m.TokenURI, m.Method, string(m.Status),
		m.TokenID, m.BlockNumber, m.SubmittedAt, m.ConfirmedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert mint: %w", err)
	}
	return nil
}

// GetByTxHash retrieves a mint by transaction hash. Returns ErrNotFound if not exists.
func (s *MintStore) GetByTxHash(ctx context.Context, txHash string) (_ *domain.MintRecord, err error) {
	start := time.Now()
	defer func() { observe("mint_get", start, err) }()

	query := `SELECT ` + mintColumns + ` FROM mints WHERE tx_hash = $1`

	m, err := scanMint(s.pool.QueryRow(ctx, query, txHash))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get mint by tx hash: %w", err)
	}
	return m, nil
}

// Settle moves a pending mint to a final status.
func (s *MintStore) Settle(ctx context.Context, txHash string, st storage.Settlement) (err error) {
	if err := storage.ValidateSettlement(st); err != nil {
		return err
	}
	start := time.Now()
	defer func() { observe("mint_settle", start, err) }()

	query := `
		UPDATE mints
		SET status = $2, token_id = $3, block_number = $4, confirmed_at = $5
		WHERE tx_hash = $1
	`

	tag, err := s.pool.Exec(ctx, query, txHash, string(st.Status), st.TokenID, st.BlockNumber, st.ConfirmedAt)
	if err != nil {
		return fmt.Errorf("settle mint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListByRecipient retrieves mints for recipient (case-insensitive), newest first.
func (s *MintStore) ListByRecipient(ctx context.Context, recipient string, limit int) (_ []*domain.MintRecord, err error) {
	start := time.Now()
	defer func() { observe("mint_list_recipient", start, err) }()

	query := `
		SELECT ` + mintColumns + `
		FROM mints
		WHERE lower(recipient) = lower($1)
		ORDER BY submitted_at DESC, tx_hash ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, recipient, storage.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("list mints by recipient: %w", err)
	}
	defer rows.Close()

	return collectMints(rows)
}

// ListPending retrieves pending mints, oldest first.
func (s *MintStore) ListPending(ctx context.Context) (_ []*domain.MintRecord, err error) {
	start := time.Now()
	defer func() { observe("mint_list_pending", start, err) }()

	query := `
		SELECT ` + mintColumns + `
		FROM mints
		WHERE status = 'pending'
		ORDER BY submitted_at ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pending mints: %w", err)
	}
	defer rows.Close()

	return collectMints(rows)
}

func collectMints(rows pgx.Rows) ([]*domain.MintRecord, error) {
	var result []*domain.MintRecord
	for rows.Next() {
		m, err := scanMint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mint: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mints: %w", err)
	}
	return result, nil
}

func scanMint(row pgx.Row) (*domain.MintRecord, error) {
	var m domain.MintRecord
	var status string

	err := row.Scan(
		&m.TxHash, &m.Contract, &m.Recipient, &m.TokenURI, &m.Method, &status,
		&m.TokenID, &m.BlockNumber, &m.SubmittedAt, &m.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Status = domain.MintStatus(status)
	return &m, nil
}

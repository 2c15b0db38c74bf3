// Package gallery is the application layer behind the API and CLI. It
// combines contract reads, metadata resolution, minting and the local
// mint and transfer ledgers.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"novatok-explorer/internal/chain"
	"novatok-explorer/internal/config"
	"novatok-explorer/internal/domain"
	"novatok-explorer/internal/erc721"
	"novatok-explorer/internal/logging"
	"novatok-explorer/internal/metadata"
	"novatok-explorer/internal/storage"
	"novatok-explorer/internal/storage/memory"
)

// PlaceholderImage is shown for tokens whose metadata cannot be resolved.
const PlaceholderImage = "/placeholder-nft.svg"

// MaxActivityLimit caps Activity page sizes.
const MaxActivityLimit = 500

// Item is one tile of a holder's gallery.
type Item struct {
	TokenID     string               `json:"tokenId"`
	TokenURI    string               `json:"tokenUri"`
	Metadata    domain.TokenMetadata `json:"metadata"`
	Placeholder bool                 `json:"placeholder"`
	ExplorerURL string               `json:"explorerUrl,omitempty"`
}

// MintRequest describes a new token.
type MintRequest struct {
	To          string             `json:"to"` // defaults to the sender account
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Image       string             `json:"image"`
	Attributes  []domain.Attribute `json:"attributes,omitempty"`
}

// MintResult is the outcome of Mint.
type MintResult struct {
	TxHash      string            `json:"txHash"`
	Status      domain.MintStatus `json:"status"`
	TokenID     *string           `json:"tokenId,omitempty"`
	TokenURI    string            `json:"tokenUri"`
	BlockNumber *uint64           `json:"blockNumber,omitempty"`
	ExplorerURL string            `json:"explorerUrl"`
}

// Info describes how the service is configured.
type Info struct {
	Mode          string `json:"mode"`
	ChainID       int64  `json:"chainId"`
	Contract      string `json:"contract,omitempty"`
	WalletEnabled bool   `json:"walletEnabled"`
	MintMethod    string `json:"mintMethod"`
	ExplorerURL   string `json:"explorerUrl"`
}

// Service implements the gallery and mint flows.
type Service struct {
	cfg       config.Config
	mode      config.Mode
	client    chain.RPCClient
	reader    *erc721.Reader
	minter    *erc721.Minter
	resolver  *metadata.Resolver
	codec     *metadata.Codec
	mints     storage.MintStore
	transfers storage.TransferEventStore
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMinter enables minting. Without it the service behaves as read-only.
func WithMinter(m *erc721.Minter) Option {
	return func(s *Service) {
		s.minter = m
	}
}

// WithResolver sets the metadata resolver.
func WithResolver(r *metadata.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithCodec sets the codec used to build token URIs.
func WithCodec(c *metadata.Codec) Option {
	return func(s *Service) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithMintStore sets the mint ledger.
func WithMintStore(store storage.MintStore) Option {
	return func(s *Service) {
		if store != nil {
			s.mints = store
		}
	}
}

// WithTransferStore sets the transfer event store.
func WithTransferStore(store storage.TransferEventStore) Option {
	return func(s *Service) {
		if store != nil {
			s.transfers = store
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logging.OrNop(l)
	}
}

// WithClock sets the clock used for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Service. client may be nil in demo mode.
func New(cfg config.Config, client chain.RPCClient, opts ...Option) *Service {
	s := &Service{
		cfg:       cfg,
		mode:      cfg.Mode(),
		client:    client,
		codec:     metadata.NewCodec(),
		mints:     memory.NewMintStore(),
		transfers: memory.NewTransferEventStore(),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = metadata.NewResolver(
			metadata.WithGateway(cfg.IPFSGateway),
			metadata.WithCodec(s.codec),
			metadata.WithResolverLogger(s.logger),
		)
	}

	var contract common.Address
	if s.mode.CanRead() && client != nil {
		contract = cfg.Contract()
	}
	s.reader = erc721.NewReader(client, contract,
		erc721.WithReadConcurrency(cfg.ReadConcurrency),
		erc721.WithMaxTokens(uint64(max(cfg.MaxTokens, 0))),
		erc721.WithReaderLogger(s.logger),
	)
	return s
}

// Mode returns the operating mode chosen at startup.
func (s *Service) Mode() config.Mode {
	return s.mode
}

// Info reports the public configuration.
func (s *Service) Info() Info {
	info := Info{
		Mode:          s.mode.String(),
		ChainID:       s.cfg.ChainID,
		WalletEnabled: s.canMint(),
		MintMethod:    s.cfg.MintMethod,
		ExplorerURL:   s.cfg.ExplorerURL,
	}
	if s.cfg.ContractConfigured() {
		info.Contract = s.cfg.Contract().Hex()
	}
	return info
}

// Gallery lists owner's tokens with resolved metadata. Tokens without
// usable metadata get a placeholder. In demo mode the gallery is empty.
func (s *Service) Gallery(ctx context.Context, owner string) ([]Item, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("%w: invalid owner address %q", ErrInvalidRequest, owner)
	}
	if !s.reader.Configured() {
		return []Item{}, nil
	}

	tokens := s.reader.ListOwnedTokens(ctx, owner)
	items := make([]Item, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.ReadConcurrency, 1))
	for i, tok := range tokens {
		g.Go(func() error {
			items[i] = s.item(gctx, tok)
			return nil
		})
	}
	_ = g.Wait()

	return items, nil
}

func (s *Service) item(ctx context.Context, tok domain.OwnedToken) Item {
	it := Item{
		TokenID:     tok.TokenID,
		TokenURI:    tok.TokenURI,
		ExplorerURL: s.cfg.TokenURL(tok.TokenID),
	}

	m := s.resolver.Resolve(ctx, tok.TokenURI)
	if m == nil {
		it.Placeholder = true
		it.Metadata = domain.TokenMetadata{
			Name:  "NFT #" + tok.TokenID,
			Image: PlaceholderImage,
		}
		return it
	}

	it.Metadata = *m
	if it.Metadata.Name == "" {
		it.Metadata.Name = "NFT #" + tok.TokenID
	}
	if it.Metadata.Image == "" {
		it.Metadata.Image = PlaceholderImage
	} else {
		it.Metadata.Image = s.resolver.GatewayURL(it.Metadata.Image)
	}
	return it
}

// Mint encodes metadata, submits the mint and waits up to ConfirmTimeout
// for the receipt. If the wait times out the result is returned with
// status pending and the ledger entry is settled later by Reconcile.
// A receipt without a parsable token id is still a confirmed mint.
func (s *Service) Mint(ctx context.Context, req MintRequest) (*MintResult, error) {
	if !s.reader.Configured() {
		return nil, ErrDemoMode
	}
	if !s.canMint() {
		return nil, ErrNoWallet
	}
	if strings.TrimSpace(req.Image) == "" {
		return nil, fmt.Errorf("%w: image is required", ErrInvalidRequest)
	}

	to := s.minter.From()
	if req.To != "" {
		if !common.IsHexAddress(req.To) {
			return nil, fmt.Errorf("%w: invalid recipient %q", ErrInvalidRequest, req.To)
		}
		to = common.HexToAddress(req.To)
	}

	if err := s.checkNetwork(ctx); err != nil {
		return nil, err
	}

	tokenURI, err := s.codec.Encode(metadata.Fields{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Image:       strings.TrimSpace(req.Image),
		Attributes:  req.Attributes,
	})
	if err != nil {
		return nil, err
	}

	handle, err := s.minter.SubmitMint(ctx, to, tokenURI)
	if err != nil {
		return nil, err
	}

	txHash := handle.Hash.Hex()
	result := &MintResult{
		TxHash:      txHash,
		Status:      domain.MintStatusPending,
		TokenURI:    tokenURI,
		ExplorerURL: s.cfg.TxURL(txHash),
	}

	record := &domain.MintRecord{
		TxHash:      txHash,
		Contract:    s.cfg.Contract().Hex(),
		Recipient:   to.Hex(),
		TokenURI:    tokenURI,
		Method:      handle.Method,
		Status:      domain.MintStatusPending,
		SubmittedAt: s.now().UnixMilli(),
	}
	if err := s.mints.Insert(ctx, record); err != nil {
		s.logger.Error("record mint", zap.String("tx", txHash), zap.Error(err))
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
	defer cancel()

	receipt, err := s.minter.AwaitConfirmation(waitCtx, handle)
	switch {
	case errors.Is(err, erc721.ErrReverted) && receipt != nil:
		s.settle(ctx, txHash, receipt)
		result.Status = domain.MintStatusReverted
		result.BlockNumber = &receipt.BlockNumber
		return result, err
	case err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("mint still pending after confirm timeout",
			zap.String("tx", txHash), zap.Duration("timeout", s.cfg.ConfirmTimeout))
		return result, nil
	case err != nil:
		return result, err
	}

	s.settle(ctx, txHash, receipt)
	result.Status = domain.MintStatusConfirmed
	result.BlockNumber = &receipt.BlockNumber
	if id, ok := erc721.ParseTokenID(receipt); ok {
		result.TokenID = &id
	} else {
		s.logger.Info("mint confirmed without token id", zap.String("tx", txHash))
	}
	return result, nil
}

// MintStatus returns the ledger entry for txHash. A pending entry is
// refreshed from the chain first.
func (s *Service) MintStatus(ctx context.Context, txHash string) (*domain.MintRecord, error) {
	hash, err := ParseTxHash(txHash)
	if err != nil {
		return nil, err
	}

	rec, err := s.mints.GetByTxHash(ctx, hash.Hex())
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.MintStatusPending || s.client == nil {
		return rec, nil
	}

	receipt, err := s.client.TransactionReceipt(ctx, hash)
	if err != nil {
		s.logger.Warn("refresh mint status", zap.String("tx", rec.TxHash), zap.Error(err))
		return rec, nil
	}
	if receipt == nil {
		return rec, nil
	}

	s.settle(ctx, rec.TxHash, receipt)
	return s.mints.GetByTxHash(ctx, rec.TxHash)
}

// Reconcile settles pending ledger entries whose receipts are now
// available. It returns the number of settled mints.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	if s.client == nil {
		return 0, nil
	}

	pending, err := s.mints.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending mints: %w", err)
	}

	settled := 0
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return settled, err
		}

		receipt, err := s.client.TransactionReceipt(ctx, common.HexToHash(rec.TxHash))
		if err != nil {
			s.logger.Warn("reconcile receipt", zap.String("tx", rec.TxHash), zap.Error(err))
			continue
		}
		if receipt == nil {
			continue
		}
		if s.settle(ctx, rec.TxHash, receipt) {
			settled++
		}
	}

	if settled > 0 {
		s.logger.Info("reconciled pending mints", zap.Int("settled", settled), zap.Int("pending", len(pending)))
	}
	return settled, nil
}

// Mints lists ledger entries for a recipient, newest first.
func (s *Service) Mints(ctx context.Context, recipient string, limit int) ([]*domain.MintRecord, error) {
	if !common.IsHexAddress(recipient) {
		return nil, fmt.Errorf("%w: invalid recipient %q", ErrInvalidRequest, recipient)
	}
	return s.mints.ListByRecipient(ctx, common.HexToAddress(recipient).Hex(), limit)
}

// Activity returns the most recent transfer events, newest first.
func (s *Service) Activity(ctx context.Context, limit int) ([]*domain.TransferEvent, error) {
	if limit > MaxActivityLimit {
		limit = MaxActivityLimit
	}
	if limit <= 0 {
		limit = config.DefaultActivityPageSize
	}
	events, err := s.transfers.GetRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transfers: %w", err)
	}
	if events == nil {
		events = []*domain.TransferEvent{}
	}
	return events, nil
}

// TokenHistory returns the transfers of one token of the configured
// contract, oldest first.
func (s *Service) TokenHistory(ctx context.Context, tokenID string) ([]*domain.TransferEvent, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("%w: token id %q is not a decimal number", ErrInvalidRequest, tokenID)
	}
	if !s.cfg.ContractConfigured() {
		return nil, ErrDemoMode
	}
	return s.transfers.GetByTokenID(ctx, s.cfg.Contract().Hex(), id.String())
}

// TransferStore exposes the transfer store so a watcher can feed it.
func (s *Service) TransferStore() storage.TransferEventStore {
	return s.transfers
}

func (s *Service) canMint() bool {
	return s.mode.CanMint() && s.minter != nil
}

func (s *Service) checkNetwork(ctx context.Context) error {
	id, err := s.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("query chain id: %w", err)
	}
	if !id.IsInt64() || id.Int64() != s.cfg.ChainID {
		return fmt.Errorf("%w: node reports chain %s, expected %d", ErrWrongNetwork, id, s.cfg.ChainID)
	}
	return nil
}

// settle writes the receipt outcome to the ledger and reports whether it
// succeeded. Ledger errors are logged; the chain is the source of truth.
func (s *Service) settle(ctx context.Context, txHash string, receipt *domain.MintReceipt) bool {
	st := storage.Settlement{
		Status:      domain.MintStatusReverted,
		BlockNumber: int64(receipt.BlockNumber),
		ConfirmedAt: s.now().UnixMilli(),
	}
	if receipt.Succeeded() {
		st.Status = domain.MintStatusConfirmed
		if id, ok := erc721.ParseTokenID(receipt); ok {
			st.TokenID = &id
		}
	}

	if err := s.mints.Settle(ctx, txHash, st); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("settle mint", zap.String("tx", txHash), zap.Error(err))
		}
		return false
	}
	return true
}

// ParseTxHash strictly parses a 0x-prefixed 32-byte transaction hash.
// Errors wrap ErrInvalidRequest.
func ParseTxHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: invalid transaction hash %q", ErrInvalidRequest, s)
	}
	return common.BytesToHash(b), nil
}

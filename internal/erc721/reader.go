package erc721

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"novatok-explorer/internal/chain"
	"novatok-explorer/internal/domain"
	"novatok-explorer/internal/logging"
	"novatok-explorer/internal/observability"
)

// Reader defaults.
const (
	DefaultReadConcurrency = 8
	DefaultMaxTokens       = 1000
)

// Reader performs read-only calls against the contract. Failures never
// surface as errors: they are logged, counted and degraded to empty results.
type Reader struct {
	client      chain.RPCClient
	contract    common.Address
	concurrency int
	maxTokens   uint64
	logger      *zap.Logger
}

// ReaderOption configures Reader.
type ReaderOption func(*Reader)

// WithReadConcurrency bounds concurrent per-token lookups.
func WithReadConcurrency(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithMaxTokens caps how many tokens ListOwnedTokens enumerates.
func WithMaxTokens(n uint64) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.maxTokens = n
		}
	}
}

// WithReaderLogger sets the logger.
func WithReaderLogger(l *zap.Logger) ReaderOption {
	return func(r *Reader) {
		r.logger = logging.OrNop(l)
	}
}

// NewReader creates a reader. A nil client or zero contract address yields
// an unconfigured reader whose reads all return empty results.
func NewReader(client chain.RPCClient, contract common.Address, opts ...ReaderOption) *Reader {
	r := &Reader{
		client:      client,
		contract:    contract,
		concurrency: DefaultReadConcurrency,
		maxTokens:   DefaultMaxTokens,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("contract", contract.Hex()))
	return r
}

// Configured reports whether reads will reach a contract.
func (r *Reader) Configured() bool {
	return r.client != nil && r.contract != (common.Address{})
}

// BalanceOf returns how many tokens owner holds. Zero when unconfigured,
// when owner is not an address, or when the call fails.
func (r *Reader) BalanceOf(ctx context.Context, owner string) uint64 {
	addr, ok := r.owner(owner)
	if !ok {
		return 0
	}

	data, err := PackBalanceOf(addr)
	if err != nil {
		r.degraded(MethodBalanceOf, err)
		return 0
	}
	out, err := r.call(ctx, data)
	if err != nil {
		r.degraded(MethodBalanceOf, err, zap.String("owner", owner))
		return 0
	}
	balance, err := UnpackUint256(MethodBalanceOf, out)
	if err != nil {
		r.degraded(MethodBalanceOf, err, zap.String("owner", owner))
		return 0
	}
	if !balance.IsUint64() {
		r.logger.Warn("balance exceeds uint64", zap.String("owner", owner), zap.Stringer("balance", balance))
		return ^uint64(0)
	}
	return balance.Uint64()
}

// TokenOfOwnerByIndex returns the id of owner's index-th token.
func (r *Reader) TokenOfOwnerByIndex(ctx context.Context, owner string, index uint64) (*big.Int, bool) {
	addr, ok := r.owner(owner)
	if !ok {
		return nil, false
	}

	data, err := PackTokenOfOwnerByIndex(addr, index)
	if err != nil {
		r.degraded(MethodTokenOfOwnerByIndex, err)
		return nil, false
	}
	out, err := r.call(ctx, data)
	if err != nil {
		r.degraded(MethodTokenOfOwnerByIndex, err, zap.String("owner", owner), zap.Uint64("index", index))
		return nil, false
	}
	id, err := UnpackUint256(MethodTokenOfOwnerByIndex, out)
	if err != nil {
		r.degraded(MethodTokenOfOwnerByIndex, err, zap.String("owner", owner), zap.Uint64("index", index))
		return nil, false
	}
	return id, true
}

// TokenURI returns the metadata URI of tokenID.
func (r *Reader) TokenURI(ctx context.Context, tokenID *big.Int) (string, bool) {
	if !r.Configured() || tokenID == nil || tokenID.Sign() < 0 {
		return "", false
	}

	data, err := PackTokenURI(tokenID)
	if err != nil {
		r.degraded(MethodTokenURI, err)
		return "", false
	}
	out, err := r.call(ctx, data)
	if err != nil {
		r.degraded(MethodTokenURI, err, zap.Stringer("token_id", tokenID))
		return "", false
	}
	uri, err := UnpackString(MethodTokenURI, out)
	if err != nil {
		r.degraded(MethodTokenURI, err, zap.Stringer("token_id", tokenID))
		return "", false
	}
	return uri, true
}

// OwnerOf returns the current holder of tokenID.
func (r *Reader) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, bool) {
	if !r.Configured() || tokenID == nil || tokenID.Sign() < 0 {
		return common.Address{}, false
	}

	data, err := PackOwnerOf(tokenID)
	if err != nil {
		r.degraded(MethodOwnerOf, err)
		return common.Address{}, false
	}
	out, err := r.call(ctx, data)
	if err != nil {
		r.degraded(MethodOwnerOf, err, zap.Stringer("token_id", tokenID))
		return common.Address{}, false
	}
	addr, err := UnpackAddress(MethodOwnerOf, out)
	if err != nil {
		r.degraded(MethodOwnerOf, err, zap.Stringer("token_id", tokenID))
		return common.Address{}, false
	}
	return addr, true
}

// ListOwnedTokens enumerates owner's tokens in index order. An index whose
// lookup fails is skipped; a token whose URI lookup fails is kept with an
// empty URI.
func (r *Reader) ListOwnedTokens(ctx context.Context, owner string) []domain.OwnedToken {
	balance := r.BalanceOf(ctx, owner)
	if balance == 0 {
		return []domain.OwnedToken{}
	}
	if balance > r.maxTokens {
		r.logger.Warn("balance above enumeration cap, truncating",
			zap.String("owner", owner),
			zap.Uint64("balance", balance),
			zap.Uint64("max_tokens", r.maxTokens))
		balance = r.maxTokens
	}

	slots := make([]*domain.OwnedToken, balance)

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := uint64(0); i < balance; i++ {
		g.Go(func() error {
			id, ok := r.TokenOfOwnerByIndex(ctx, owner, i)
			if !ok {
				return nil
			}
			uri, _ := r.TokenURI(ctx, id)
			slots[i] = &domain.OwnedToken{TokenID: id.String(), TokenURI: uri}
			return nil
		})
	}
	_ = g.Wait()

	tokens := make([]domain.OwnedToken, 0, len(slots))
	for _, t := range slots {
		if t != nil {
			tokens = append(tokens, *t)
		}
	}

	observability.RecordTokensListed(len(tokens))
	r.logger.Debug("listed owned tokens",
		zap.String("owner", owner),
		zap.Uint64("balance", balance),
		zap.Int("returned", len(tokens)))
	return tokens
}

func (r *Reader) owner(owner string) (common.Address, bool) {
	if !r.Configured() || !common.IsHexAddress(owner) {
		return common.Address{}, false
	}
	return common.HexToAddress(owner), true
}

func (r *Reader) call(ctx context.Context, data []byte) ([]byte, error) {
	return r.client.Call(ctx, chain.CallMsg{To: r.contract, Data: data})
}

func (r *Reader) degraded(op string, err error, fields ...zap.Field) {
	observability.RecordDegradedRead(op)
	r.logger.Warn("contract read failed", append([]zap.Field{zap.String("op", op), zap.Error(err)}, fields...)...)
}

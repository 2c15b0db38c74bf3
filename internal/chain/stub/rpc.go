// Package stub provides an in-memory chain.RPCClient for tests.
package stub

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"novatok-explorer/internal/chain"
	"novatok-explorer/internal/domain"
)

// ErrNoCallResult is returned by Call when no result is registered for the calldata.
var ErrNoCallResult = errors.New("stub: no result for call")

// CallResult is a canned eth_call answer.
type CallResult struct {
	Data []byte
	Err  error
}

// RPCClient implements chain.RPCClient for testing. Calls are keyed by
// hex-encoded calldata.
type RPCClient struct {
	mu sync.Mutex

	ChainIDValue  *big.Int
	Head          uint64
	GasPriceValue *big.Int
	GasEstimate   uint64
	EstimateErr   error
	Nonces        map[common.Address]uint64
	Calls         map[string]CallResult
	Receipts      map[common.Hash]*domain.MintReceipt
	Logs          []domain.Log

	// MaxLogRange rejects eth_getLogs spanning more blocks, like public
	// endpoints do. 0 means unlimited.
	MaxLogRange uint64

	// SendErr fails both send methods when set.
	SendErr error
	// SendHash is returned by SendTransaction.
	SendHash common.Hash

	// Recorded traffic.
	CallLog      []chain.CallMsg
	SentRaw      []*types.Transaction
	SentMessages []chain.CallMsg
	LogQueries   []chain.FilterQuery
	ReceiptPolls int
}

// ErrRangeTooWide is returned by GetLogs when a query exceeds MaxLogRange.
var ErrRangeTooWide = errors.New("stub: block range too wide")

var _ chain.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client on Sepolia.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		ChainIDValue:  big.NewInt(11155111),
		GasPriceValue: big.NewInt(1_000_000_000),
		GasEstimate:   100_000,
		Nonces:        make(map[common.Address]uint64),
		Calls:         make(map[string]CallResult),
		Receipts:      make(map[common.Hash]*domain.MintReceipt),
	}
}

// SetCall registers the result for calldata.
func (c *RPCClient) SetCall(data []byte, out []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls[hexutil.Encode(data)] = CallResult{Data: out, Err: err}
}

// AddReceipt makes a receipt visible to TransactionReceipt.
func (c *RPCClient) AddReceipt(r *domain.MintReceipt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Receipts[r.TxHash] = r
}

// LogQueryCount returns the number of eth_getLogs invocations.
func (c *RPCClient) LogQueryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.LogQueries)
}

// CallCount returns the number of eth_call invocations.
func (c *RPCClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.CallLog)
}

// Call returns the registered result for msg.Data.
func (c *RPCClient) Call(_ context.Context, msg chain.CallMsg) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallLog = append(c.CallLog, msg)

	res, ok := c.Calls[hexutil.Encode(msg.Data)]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoCallResult, hexutil.Encode(msg.Data))
	}
	return res.Data, res.Err
}

// ChainID returns ChainIDValue.
func (c *RPCClient) ChainID(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.ChainIDValue), nil
}

// BlockNumber returns Head.
func (c *RPCClient) BlockNumber(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Head, nil
}

// PendingNonceAt returns the stored nonce for account.
func (c *RPCClient) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Nonces[account], nil
}

// GasPrice returns GasPriceValue.
func (c *RPCClient) GasPrice(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.GasPriceValue), nil
}

// EstimateGas returns GasEstimate or EstimateErr.
func (c *RPCClient) EstimateGas(context.Context, chain.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.EstimateErr != nil {
		return 0, c.EstimateErr
	}
	return c.GasEstimate, nil
}

// SendRawTransaction decodes and records the transaction, bumping the sender nonce.
func (c *RPCClient) SendRawTransaction(_ context.Context, rawTx []byte) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return common.Hash{}, c.SendErr
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return common.Hash{}, &chain.RPCError{Code: -32000, Message: "rlp: " + err.Error()}
	}
	if from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx); err == nil {
		c.Nonces[from] = tx.Nonce() + 1
	}
	c.SentRaw = append(c.SentRaw, tx)
	return tx.Hash(), nil
}

// SendTransaction records msg and returns SendHash.
func (c *RPCClient) SendTransaction(_ context.Context, msg chain.CallMsg) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return common.Hash{}, c.SendErr
	}
	c.SentMessages = append(c.SentMessages, msg)
	return c.SendHash, nil
}

// TransactionReceipt returns the stored receipt, or nil while pending.
func (c *RPCClient) TransactionReceipt(_ context.Context, hash common.Hash) (*domain.MintReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ReceiptPolls++
	return c.Receipts[hash], nil
}

// GetLogs returns stored logs within the block range and address filter.
func (c *RPCClient) GetLogs(_ context.Context, q chain.FilterQuery) ([]domain.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LogQueries = append(c.LogQueries, q)

	if c.MaxLogRange > 0 {
		to := c.Head
		if q.ToBlock != nil {
			to = *q.ToBlock
		}
		if to >= q.FromBlock && to-q.FromBlock+1 > c.MaxLogRange {
			return nil, fmt.Errorf("%w: %d-%d", ErrRangeTooWide, q.FromBlock, to)
		}
	}

	var out []domain.Log
	for _, l := range c.Logs {
		if l.Block < q.FromBlock || (q.ToBlock != nil && l.Block > *q.ToBlock) {
			continue
		}
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

// Package chain talks to an Ethereum node over JSON-RPC (HTTP) and
// websocket log subscriptions.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"novatok-explorer/internal/domain"
)

// RPCClient defines the Ethereum JSON-RPC surface used by the marketplace.
type RPCClient interface {
	// Call executes eth_call against the latest block and returns the raw return data.
	Call(ctx context.Context, msg CallMsg) ([]byte, error)

	// ChainID returns the chain id reported by the node.
	ChainID(ctx context.Context) (*big.Int, error)

	// BlockNumber returns the latest block number.
	BlockNumber(ctx context.Context) (uint64, error)

	// PendingNonceAt returns the next nonce for account, including pending transactions.
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)

	// GasPrice returns the node's suggested legacy gas price.
	GasPrice(ctx context.Context) (*big.Int, error)

	// EstimateGas estimates gas needed to execute msg.
	EstimateGas(ctx context.Context, msg CallMsg) (uint64, error)

	// SendRawTransaction broadcasts a signed transaction.
	SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error)

	// SendTransaction asks the node (or the wallet behind it) to sign and send msg.
	SendTransaction(ctx context.Context, msg CallMsg) (common.Hash, error)

	// TransactionReceipt returns the receipt, or nil when the transaction is not yet mined.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*domain.MintReceipt, error)

	// GetLogs returns logs matching the filter.
	GetLogs(ctx context.Context, q FilterQuery) ([]domain.Log, error)
}

// CallMsg holds the arguments of a contract call or transaction.
type CallMsg struct {
	From     *common.Address
	To       common.Address
	Data     []byte
	Gas      uint64   // 0 = let the node decide
	GasPrice *big.Int // nil = let the node decide
	Value    *big.Int
}

// FilterQuery selects logs for eth_getLogs.
type FilterQuery struct {
	FromBlock uint64
	ToBlock   *uint64 // nil = latest
	Addresses []common.Address
	Topics    [][]common.Hash
}

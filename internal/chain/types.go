package chain

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"novatok-explorer/internal/domain"
)

// Wire formats shared by the HTTP and websocket clients.

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type callArgs struct {
	From     *common.Address `json:"from,omitempty"`
	To       common.Address  `json:"to"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
}

func toCallArgs(msg CallMsg) callArgs {
	args := callArgs{
		From: msg.From,
		To:   msg.To,
		Data: msg.Data,
	}
	if msg.Gas > 0 {
		gas := hexutil.Uint64(msg.Gas)
		args.Gas = &gas
	}
	if msg.GasPrice != nil {
		args.GasPrice = (*hexutil.Big)(msg.GasPrice)
	}
	if msg.Value != nil {
		args.Value = (*hexutil.Big)(msg.Value)
	}
	return args
}

type filterArgs struct {
	FromBlock hexutil.Uint64   `json:"fromBlock"`
	ToBlock   string           `json:"toBlock"`
	Address   []common.Address `json:"address,omitempty"`
	Topics    [][]common.Hash  `json:"topics,omitempty"`
}

type rpcReceipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	BlockNumber     hexutil.Uint64 `json:"blockNumber"`
	Status          hexutil.Uint64 `json:"status"`
	Logs            []rpcLog       `json:"logs"`
}

type rpcLog struct {
	Address         common.Address `json:"address"`
	Topics          []common.Hash  `json:"topics"`
	Data            hexutil.Bytes  `json:"data"`
	BlockNumber     hexutil.Uint64 `json:"blockNumber"`
	TransactionHash common.Hash    `json:"transactionHash"`
	LogIndex        hexutil.Uint   `json:"logIndex"`
	Removed         bool           `json:"removed"`
}

func (l rpcLog) toDomain() domain.Log {
	return domain.Log{
		Address: l.Address,
		Topics:  l.Topics,
		Data:    l.Data,
		TxHash:  l.TransactionHash,
		Index:   uint(l.LogIndex),
		Block:   uint64(l.BlockNumber),
	}
}

func (r *rpcReceipt) toDomain() *domain.MintReceipt {
	logs := make([]domain.Log, len(r.Logs))
	for i, l := range r.Logs {
		logs[i] = l.toDomain()
	}
	return &domain.MintReceipt{
		TxHash:      r.TransactionHash,
		BlockNumber: uint64(r.BlockNumber),
		Status:      uint64(r.Status),
		Logs:        logs,
	}
}

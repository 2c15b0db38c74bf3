package domain

import "github.com/ethereum/go-ethereum/common"

// Receipt status values as reported by eth_getTransactionReceipt.
const (
	ReceiptStatusFailed     uint64 = 0
	ReceiptStatusSuccessful uint64 = 1
)

// MintReceipt is the subset of a transaction receipt needed after a mint.
type MintReceipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Status      uint64
	Logs        []Log
}

// Succeeded reports whether the transaction executed without revert.
func (r *MintReceipt) Succeeded() bool {
	return r.Status == ReceiptStatusSuccessful
}

// Log is an EVM event log entry.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
	TxHash  common.Hash
	Index   uint
	Block   uint64
}

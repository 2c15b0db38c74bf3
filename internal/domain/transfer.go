package domain

import "github.com/ethereum/go-ethereum/common"

// TransferKind classifies a Transfer event by its endpoints.
type TransferKind string

const (
	TransferKindMint     TransferKind = "mint"
	TransferKindBurn     TransferKind = "burn"
	TransferKindTransfer TransferKind = "transfer"
)

// TransferEvent is a decoded ERC-721 Transfer log.
// Corresponds to transfer_events table in ClickHouse.
type TransferEvent struct {
	Contract    string // contract address (checksummed)
	TxHash      string // 0x-prefixed
	LogIndex    uint32
	BlockNumber uint64
	From        string
	To          string
	TokenID     string // decimal uint256
	ObservedAt  int64  // Unix timestamp in milliseconds
}

// Kind derives the transfer kind from the zero address.
func (e *TransferEvent) Kind() TransferKind {
	zero := common.Address{}.Hex()
	switch {
	case e.From == zero:
		return TransferKindMint
	case e.To == zero:
		return TransferKindBurn
	default:
		return TransferKindTransfer
	}
}

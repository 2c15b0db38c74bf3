package erc721

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"novatok-explorer/internal/domain"
)

// ParseTokenID returns the decimal token id from the first ERC-721 Transfer
// log in receipt. ERC-20 style Transfer logs (no indexed value) are skipped.
// Later matching logs are ignored.
func ParseTokenID(receipt *domain.MintReceipt) (string, bool) {
	if receipt == nil {
		return "", false
	}
	for _, l := range receipt.Logs {
		if isERC721Transfer(l) {
			return new(big.Int).SetBytes(l.Topics[3].Bytes()).String(), true
		}
	}
	return "", false
}

// ParseTransfer decodes an ERC-721 Transfer log. ObservedAt is left for the caller.
func ParseTransfer(l domain.Log) (domain.TransferEvent, bool) {
	if !isERC721Transfer(l) {
		return domain.TransferEvent{}, false
	}
	return domain.TransferEvent{
		Contract:    l.Address.Hex(),
		TxHash:      l.TxHash.Hex(),
		LogIndex:    uint32(l.Index),
		BlockNumber: l.Block,
		From:        common.BytesToAddress(l.Topics[1].Bytes()).Hex(),
		To:          common.BytesToAddress(l.Topics[2].Bytes()).Hex(),
		TokenID:     new(big.Int).SetBytes(l.Topics[3].Bytes()).String(),
	}, true
}

func isERC721Transfer(l domain.Log) bool {
	return len(l.Topics) >= 4 && l.Topics[0] == TransferTopic
}

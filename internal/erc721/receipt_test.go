package erc721

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novatok-explorer/internal/domain"
)

func transferLog(from, to common.Address, tokenID *big.Int) domain.Log {
	return domain.Log{
		Address: testContract,
		Topics: []common.Hash{
			TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(tokenID),
		},
		TxHash: common.HexToHash("0xbeef"),
		Index:  2,
		Block:  500,
	}
}

func TestTransferTopic(t *testing.T) {
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", TransferTopic.Hex())
}

func TestParseTokenID(t *testing.T) {
	approval := domain.Log{Topics: []common.Hash{common.HexToHash("0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925")}}
	erc20Transfer := domain.Log{
		Topics: []common.Hash{TransferTopic, common.BytesToHash(testOwner.Bytes()), common.BytesToHash(testContract.Bytes())},
		Data:   common.BigToHash(big.NewInt(5)).Bytes(),
	}
	mint := transferLog(common.Address{}, testOwner, big.NewInt(42))

	r := &domain.MintReceipt{Status: domain.ReceiptStatusSuccessful, Logs: []domain.Log{approval, erc20Transfer, mint}}
	id, ok := ParseTokenID(r)
	require.True(t, ok)
	assert.Equal(t, "42", id)
}

func TestParseTokenID_LargeID(t *testing.T) {
	big256, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)

	r := &domain.MintReceipt{Logs: []domain.Log{transferLog(common.Address{}, testOwner, big256)}}
	id, ok := ParseTokenID(r)
	require.True(t, ok)
	assert.Equal(t, big256.String(), id)
}

func TestParseTokenID_FirstMatchWins(t *testing.T) {
	r := &domain.MintReceipt{Logs: []domain.Log{
		transferLog(common.Address{}, testOwner, big.NewInt(7)),
		transferLog(common.Address{}, testOwner, big.NewInt(8)),
	}}
	id, ok := ParseTokenID(r)
	require.True(t, ok)
	assert.Equal(t, "7", id)
}

func TestParseTokenID_Absent(t *testing.T) {
	_, ok := ParseTokenID(nil)
	assert.False(t, ok)

	_, ok = ParseTokenID(&domain.MintReceipt{})
	assert.False(t, ok)

	_, ok = ParseTokenID(&domain.MintReceipt{Logs: []domain.Log{
		{Topics: []common.Hash{TransferTopic, {}, {}}},
		{Topics: nil},
	}})
	assert.False(t, ok)
}

func TestParseTransfer(t *testing.T) {
	ev, ok := ParseTransfer(transferLog(common.Address{}, testOwner, big.NewInt(9)))
	require.True(t, ok)
	assert.Equal(t, testContract.Hex(), ev.Contract)
	assert.Equal(t, common.Address{}.Hex(), ev.From)
	assert.Equal(t, testOwner.Hex(), ev.To)
	assert.Equal(t, "9", ev.TokenID)
	assert.Equal(t, uint32(2), ev.LogIndex)
	assert.Equal(t, uint64(500), ev.BlockNumber)
	assert.Equal(t, common.HexToHash("0xbeef").Hex(), ev.TxHash)
	assert.Equal(t, domain.TransferKindMint, ev.Kind())

	_, ok = ParseTransfer(domain.Log{Topics: []common.Hash{TransferTopic}})
	assert.False(t, ok)
}

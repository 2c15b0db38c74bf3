package erc721

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"novatok-explorer/internal/chain"
)

// gasHeadroomPercent is added on top of eth_estimateGas.
const gasHeadroomPercent = 20

// Sender signs and broadcasts a contract call.
type Sender interface {
	// From returns the account transactions are sent from.
	From() common.Address
	// Send submits a transaction calling to with data and returns its hash.
	Send(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
}

// KeySender signs legacy transactions with a local secp256k1 key.
type KeySender struct {
	client chain.RPCClient
	key    *ecdsa.PrivateKey
	from   common.Address
}

var _ Sender = (*KeySender)(nil)

// NewKeySender parses a hex private key (with or without 0x).
func NewKeySender(client chain.RPCClient, hexKey string) (*KeySender, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &KeySender{
		client: client,
		key:    key,
		from:   crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// From returns the key's address.
func (s *KeySender) From() common.Address {
	return s.from
}

// Send builds, signs and broadcasts the transaction.
func (s *KeySender) Send(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	chainID, err := s.client.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get chain id: %w", err)
	}
	nonce, err := s.client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := s.client.GasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get gas price: %w", err)
	}
	gas, err := s.client.EstimateGas(ctx, chain.CallMsg{From: &s.from, To: to, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * gasHeadroomPercent / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    new(big.Int),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode transaction: %w", err)
	}

	hash, err := s.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return common.Hash{}, err
	}
	if hash == (common.Hash{}) {
		hash = signed.Hash()
	}
	return hash, nil
}

// NodeSender delegates signing to the node via eth_sendTransaction, e.g. an
// unlocked account or a wallet bridge where the user approves each request.
type NodeSender struct {
	client chain.RPCClient
	from   common.Address
}

var _ Sender = (*NodeSender)(nil)

// NewNodeSender creates a sender for account from.
func NewNodeSender(client chain.RPCClient, from common.Address) *NodeSender {
	return &NodeSender{client: client, from: from}
}

// From returns the wallet account.
func (s *NodeSender) From() common.Address {
	return s.from
}

// Send calls eth_sendTransaction.
func (s *NodeSender) Send(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	return s.client.SendTransaction(ctx, chain.CallMsg{From: &s.from, To: to, Data: data})
}

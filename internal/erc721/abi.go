// Package erc721 reads and mints tokens on an ERC-721 Enumerable contract
// and decodes its Transfer events.
package erc721

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Contract method names.
const (
	MethodBalanceOf           = "balanceOf"
	MethodTokenOfOwnerByIndex = "tokenOfOwnerByIndex"
	MethodTokenURI            = "tokenURI"
	MethodOwnerOf             = "ownerOf"
	MethodMint                = "mint"
	MethodSafeMint            = "safeMint"
)

// TransferTopic is keccak256("Transfer(address,address,uint256)").
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

const contractABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"tokenOfOwnerByIndex","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"tokenURI","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"ownerOf","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"mint","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"uri","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"safeMint","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"uri","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[{"name":"from","type":"address","indexed":true},
             {"name":"to","type":"address","indexed":true},
             {"name":"tokenId","type":"uint256","indexed":true}]}
]`

// ContractABI is the parsed subset of the NovaTok NFT contract ABI.
var ContractABI = mustParseABI(contractABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse erc721 abi: %v", err))
	}
	return parsed
}

// IsMintMethod reports whether name is a supported mint entry point.
func IsMintMethod(name string) bool {
	return name == MethodMint || name == MethodSafeMint
}

// PackBalanceOf encodes balanceOf(owner).
func PackBalanceOf(owner common.Address) ([]byte, error) {
	return ContractABI.Pack(MethodBalanceOf, owner)
}

// PackTokenOfOwnerByIndex encodes tokenOfOwnerByIndex(owner, index).
func PackTokenOfOwnerByIndex(owner common.Address, index uint64) ([]byte, error) {
	return ContractABI.Pack(MethodTokenOfOwnerByIndex, owner, new(big.Int).SetUint64(index))
}

// PackTokenURI encodes tokenURI(tokenId).
func PackTokenURI(tokenID *big.Int) ([]byte, error) {
	return ContractABI.Pack(MethodTokenURI, tokenID)
}

// PackOwnerOf encodes ownerOf(tokenId).
func PackOwnerOf(tokenID *big.Int) ([]byte, error) {
	return ContractABI.Pack(MethodOwnerOf, tokenID)
}

// PackMint encodes mint(to, uri) or safeMint(to, uri).
func PackMint(method string, to common.Address, uri string) ([]byte, error) {
	if !IsMintMethod(method) {
		return nil, fmt.Errorf("unsupported mint method %q", method)
	}
	return ContractABI.Pack(method, to, uri)
}

// UnpackUint256 decodes a single uint256 return value.
func UnpackUint256(method string, data []byte) (*big.Int, error) {
	out, err := ContractABI.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected type %T", method, out[0])
	}
	return v, nil
}

// UnpackString decodes a single string return value.
func UnpackString(method string, data []byte) (string, error) {
	out, err := ContractABI.Unpack(method, data)
	if err != nil {
		return "", fmt.Errorf("unpack %s: %w", method, err)
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("unpack %s: unexpected type %T", method, out[0])
	}
	return s, nil
}

// UnpackAddress decodes a single address return value.
func UnpackAddress(method string, data []byte) (common.Address, error) {
	out, err := ContractABI.Unpack(method, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack %s: %w", method, err)
	}
	a, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unpack %s: unexpected type %T", method, out[0])
	}
	return a, nil
}

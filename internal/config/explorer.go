package config

import (
	"fmt"
	"strings"
)

// TxURL links a transaction on the block explorer.
func (c *Config) TxURL(hash string) string {
	return fmt.Sprintf("%s/tx/%s", c.explorerBase(), hash)
}

// AddressURL links an account on the block explorer.
func (c *Config) AddressURL(address string) string {
	return fmt.Sprintf("%s/address/%s", c.explorerBase(), address)
}

// TokenURL links a token of the configured contract.
func (c *Config) TokenURL(tokenID string) string {
	return fmt.Sprintf("%s/token/%s?a=%s", c.explorerBase(), c.ContractAddress, tokenID)
}

func (c *Config) explorerBase() string {
	base := c.ExplorerURL
	if base == "" {
		base = DefaultExplorerURL
	}
	return strings.TrimRight(base, "/")
}

// Package config resolves runtime configuration from the environment.
// The operating Mode is derived once here and passed by value to components.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Defaults.
const (
	DefaultRPCURL           = "https://ethereum-sepolia-rpc.publicnode.com"
	DefaultChainID          = 11155111 // Sepolia
	DefaultIPFSGateway      = "https://ipfs.io/ipfs/"
	DefaultExplorerURL      = "https://sepolia.etherscan.io"
	DefaultMintMethod       = "mint"
	DefaultConfirmTimeout   = 5 * time.Minute
	DefaultReadConcurrency  = 8
	DefaultMaxTokens        = 1000
	DefaultHTTPAddr         = ":8080"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "console"
	DefaultActivityPageSize = 50
	DefaultMetadataCacheTTL = 10 * time.Minute
)

// Mode is the operating mode selected at startup.
type Mode int

const (
	// ModeDemo means no contract is configured. Reads return empty results
	// and mint requests are refused.
	ModeDemo Mode = iota
	// ModeReadOnly means a contract is configured but no transaction sender is.
	ModeReadOnly
	// ModeLive means reads and mints are both available.
	ModeLive
)

// String returns the string representation of Mode.
func (m Mode) String() string {
	switch m {
	case ModeDemo:
		return "demo"
	case ModeReadOnly:
		return "read-only"
	case ModeLive:
		return "live"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// CanRead reports whether chain reads hit a real contract.
func (m Mode) CanRead() bool {
	return m == ModeReadOnly || m == ModeLive
}

// CanMint reports whether mint transactions can be submitted.
func (m Mode) CanMint() bool {
	return m == ModeLive
}

// Config holds all runtime settings.
type Config struct {
	ContractAddress string // as configured; see ContractConfigured
	RPCURL          string
	WSURL           string
	ChainID         int64
	ExplorerURL     string

	WalletConnectProjectID string
	WalletAddress          string // account for eth_sendTransaction
	PrivateKey             string // hex, for local signing
	MintMethod             string // mint | safeMint

	PostgresDSN   string
	ClickhouseDSN string

	IPFSGateway      string
	MetadataCacheTTL time.Duration // 0 disables caching of fetched metadata
	ConfirmTimeout   time.Duration
	ReadConcurrency  int
	MaxTokens        int

	HTTPAddr  string
	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads configuration using getenv (os.Getenv when nil).
func Load(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	env := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				return v
			}
		}
		return ""
	}

	cfg := Config{
		ContractAddress: env("NFT_CONTRACT_ADDRESS", "NEXT_PUBLIC_NFT_CONTRACT_ADDRESS",
			"CONTRACT_ADDRESS", "NEXT_PUBLIC_CONTRACT_ADDRESS"),
		RPCURL:                 orDefault(env("RPC_URL", "NEXT_PUBLIC_RPC_URL"), DefaultRPCURL),
		WSURL:                  env("WS_URL"),
		ChainID:                DefaultChainID,
		ExplorerURL:            orDefault(env("EXPLORER_URL"), DefaultExplorerURL),
		WalletConnectProjectID: env("WALLETCONNECT_PROJECT_ID", "NEXT_PUBLIC_WALLETCONNECT_PROJECT_ID"),
		WalletAddress:          env("WALLET_ADDRESS"),
		PrivateKey:             env("PRIVATE_KEY"),
		MintMethod:             orDefault(env("MINT_METHOD"), DefaultMintMethod),
		PostgresDSN:            env("POSTGRES_DSN"),
		ClickhouseDSN:          env("CLICKHOUSE_DSN"),
		IPFSGateway:            orDefault(env("IPFS_GATEWAY"), DefaultIPFSGateway),
		MetadataCacheTTL:       DefaultMetadataCacheTTL,
		ConfirmTimeout:         DefaultConfirmTimeout,
		ReadConcurrency:        DefaultReadConcurrency,
		MaxTokens:              DefaultMaxTokens,
		HTTPAddr:               orDefault(env("HTTP_ADDR"), DefaultHTTPAddr),
		LogLevel:               orDefault(env("LOG_LEVEL"), DefaultLogLevel),
		LogFormat:              orDefault(env("LOG_FORMAT"), DefaultLogFormat),
		LogFile:                env("LOG_FILE"),
	}

	if v := env("CHAIN_ID", "NEXT_PUBLIC_CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return Config{}, fmt.Errorf("invalid CHAIN_ID %q", v)
		}
		cfg.ChainID = id
	}
	if v := env("CONFIRM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CONFIRM_TIMEOUT %q: %w", v, err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("invalid CONFIRM_TIMEOUT %q: must be positive", v)
		}
		cfg.ConfirmTimeout = d
	}
	if v := env("METADATA_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("invalid METADATA_CACHE_TTL %q", v)
		}
		cfg.MetadataCacheTTL = d
	}
	if v := env("READ_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid READ_CONCURRENCY %q", v)
		}
		cfg.ReadConcurrency = n
	}
	if v := env("MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid MAX_TOKENS %q", v)
		}
		cfg.MaxTokens = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be degraded to a default.
// An absent or malformed contract address is not an error: it selects ModeDemo.
func (c *Config) Validate() error {
	switch c.MintMethod {
	case "mint", "safeMint":
	default:
		return fmt.Errorf("invalid MINT_METHOD %q: want mint or safeMint", c.MintMethod)
	}
	if c.WalletAddress != "" && !common.IsHexAddress(c.WalletAddress) {
		return fmt.Errorf("invalid WALLET_ADDRESS %q", c.WalletAddress)
	}
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is empty")
	}
	return nil
}

// ContractConfigured reports whether ContractAddress is usable.
func (c *Config) ContractConfigured() bool {
	return IsContractAddress(c.ContractAddress)
}

// WalletEnabled reports whether a transaction sender is configured.
// A WalletConnect project id only enables the node-wallet flow together with an account.
func (c *Config) WalletEnabled() bool {
	if c.PrivateKey != "" {
		return true
	}
	return c.WalletConnectProjectID != "" && c.WalletAddress != ""
}

// Mode derives the operating mode.
func (c *Config) Mode() Mode {
	if !c.ContractConfigured() {
		return ModeDemo
	}
	if !c.WalletEnabled() {
		return ModeReadOnly
	}
	return ModeLive
}

// Contract returns the parsed contract address; zero when not configured.
func (c *Config) Contract() common.Address {
	if !c.ContractConfigured() {
		return common.Address{}
	}
	return common.HexToAddress(c.ContractAddress)
}

// IsContractAddress checks for a 0x-prefixed 20-byte hex address.
func IsContractAddress(s string) bool {
	return len(s) == 42 && strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultRPCURL, cfg.RPCURL)
	assert.Equal(t, int64(DefaultChainID), cfg.ChainID)
	assert.Equal(t, "mint", cfg.MintMethod)
	assert.Equal(t, DefaultConfirmTimeout, cfg.ConfirmTimeout)
	assert.Equal(t, DefaultMetadataCacheTTL, cfg.MetadataCacheTTL)
	assert.Empty(t, cfg.LogFile)
	assert.Equal(t, ModeDemo, cfg.Mode())
	assert.False(t, cfg.WalletEnabled())
}

func TestLoad_ContractFallbackNames(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{"CONTRACT_ADDRESS": "  " + testContract + " "}))
	require.NoError(t, err)
	assert.Equal(t, testContract, cfg.ContractAddress)
	assert.Equal(t, ModeReadOnly, cfg.Mode())

	cfg, err = Load(envMap(map[string]string{
		"NFT_CONTRACT_ADDRESS": testContract,
		"CONTRACT_ADDRESS":     "0x0000000000000000000000000000000000000001",
	}))
	require.NoError(t, err)
	assert.Equal(t, testContract, cfg.ContractAddress)
}

func TestMode_Selection(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Mode
	}{
		{"no contract", map[string]string{"PRIVATE_KEY": "abc"}, ModeDemo},
		{"malformed contract", map[string]string{"NFT_CONTRACT_ADDRESS": "0x1234"}, ModeDemo},
		{"contract only", map[string]string{"NFT_CONTRACT_ADDRESS": testContract}, ModeReadOnly},
		{"project id without account", map[string]string{
			"NFT_CONTRACT_ADDRESS":     testContract,
			"WALLETCONNECT_PROJECT_ID": "pid",
		}, ModeReadOnly},
		{"project id with account", map[string]string{
			"NFT_CONTRACT_ADDRESS":     testContract,
			"WALLETCONNECT_PROJECT_ID": "pid",
			"WALLET_ADDRESS":           "0x00000000000000000000000000000000000000aa",
		}, ModeLive},
		{"private key", map[string]string{
			"NFT_CONTRACT_ADDRESS": testContract,
			"PRIVATE_KEY":          "0xabc",
		}, ModeLive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(envMap(tt.env))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Mode())
		})
	}
}

func TestMode_Capabilities(t *testing.T) {
	assert.False(t, ModeDemo.CanRead())
	assert.False(t, ModeDemo.CanMint())
	assert.True(t, ModeReadOnly.CanRead())
	assert.False(t, ModeReadOnly.CanMint())
	assert.True(t, ModeLive.CanMint())
	assert.Equal(t, "read-only", ModeReadOnly.String())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"CHAIN_ID": "sepolia"},
		{"CHAIN_ID": "-1"},
		{"CONFIRM_TIMEOUT": "soon"},
		{"CONFIRM_TIMEOUT": "0s"},
		{"CONFIRM_TIMEOUT": "-30s"},
		{"METADATA_CACHE_TTL": "-1m"},
		{"READ_CONCURRENCY": "0"},
		{"MAX_TOKENS": "many"},
		{"MINT_METHOD": "airdrop"},
		{"WALLET_ADDRESS": "not-an-address"},
	}

	for _, env := range tests {
		_, err := Load(envMap(env))
		assert.Error(t, err, "env %v", env)
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		"CHAIN_ID":         "31337",
		"CONFIRM_TIMEOUT":  "30s",
		"READ_CONCURRENCY": "2",
		"MAX_TOKENS":       "10",
		"MINT_METHOD":      "safeMint",
	}))
	require.NoError(t, err)

	assert.Equal(t, int64(31337), cfg.ChainID)
	assert.Equal(t, 30*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 2, cfg.ReadConcurrency)
	assert.Equal(t, 10, cfg.MaxTokens)
	assert.Equal(t, "safeMint", cfg.MintMethod)
}

func TestIsContractAddress(t *testing.T) {
	assert.True(t, IsContractAddress(testContract))
	assert.False(t, IsContractAddress(""))
	assert.False(t, IsContractAddress("5FbDB2315678afecb367f032d93F642f64180aa3"))
	assert.False(t, IsContractAddress("0xZZbDB2315678afecb367f032d93F642f64180aa3"))
}

func TestExplorerLinks(t *testing.T) {
	cfg := Config{ContractAddress: testContract, ExplorerURL: "https://sepolia.etherscan.io/"}

	assert.Equal(t, "https://sepolia.etherscan.io/tx/0xabc", cfg.TxURL("0xabc"))
	assert.Equal(t, "https://sepolia.etherscan.io/address/0xdef", cfg.AddressURL("0xdef"))
	assert.Equal(t, "https://sepolia.etherscan.io/token/"+testContract+"?a=7", cfg.TokenURL("7"))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nNOVATOK_TEST_A=one\nexport NOVATOK_TEST_B=\"two\"\nNOVATOK_TEST_C=keep\ngarbage\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("NOVATOK_TEST_C", "existing")
	os.Unsetenv("NOVATOK_TEST_A")
	os.Unsetenv("NOVATOK_TEST_B")
	t.Cleanup(func() {
		os.Unsetenv("NOVATOK_TEST_A")
		os.Unsetenv("NOVATOK_TEST_B")
	})

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "one", os.Getenv("NOVATOK_TEST_A"))
	assert.Equal(t, "two", os.Getenv("NOVATOK_TEST_B"))
	assert.Equal(t, "existing", os.Getenv("NOVATOK_TEST_C"))

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"novatok-explorer/internal/config"
	"novatok-explorer/internal/logging"
)

// globalFlags override the matching environment variables when set.
type globalFlags struct {
	EnvFile   string
	RPCURL    string
	Contract  string
	ChainID   int64
	LogLevel  string
	LogFormat string
}

var (
	flags  globalFlags
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "novatok",
	Short: "NovaTok Explorer NFT backend",
	Long: `NovaTok Explorer serves an HTTP API over an ERC-721 contract and
provides tools to list owned tokens, mint with embedded metadata, decode
token URIs and follow Transfer events.

Configuration comes from the environment (and a .env file); flags override it.
Without a valid NFT_CONTRACT_ADDRESS the service runs in demo mode.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(flags.EnvFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}

		overrides := flagOverrides(cmd)
		var err error
		cfg, err = config.Load(func(key string) string {
			if v, ok := overrides[key]; ok {
				return v
			}
			return os.Getenv(key)
		})
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		var logOpts []logging.Option
		if cfg.LogFile != "" {
			logOpts = append(logOpts, logging.WithFile(cfg.LogFile))
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat, logOpts...)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.EnvFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pf.StringVar(&flags.RPCURL, "rpc-url", "", "HTTP JSON-RPC endpoint (RPC_URL)")
	pf.StringVar(&flags.Contract, "contract", "", "ERC-721 contract address (NFT_CONTRACT_ADDRESS)")
	pf.Int64Var(&flags.ChainID, "chain-id", 0, "expected chain id (CHAIN_ID)")
	pf.StringVar(&flags.LogLevel, "log-level", "", "debug|info|warn|error (LOG_LEVEL)")
	pf.StringVar(&flags.LogFormat, "log-format", "", "console|json (LOG_FORMAT)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ownedCmd)
	rootCmd.AddCommand(mintCmd)
	rootCmd.AddCommand(mintsCmd)
	rootCmd.AddCommand(receiptCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(reconcileCmd)
}

func flagOverrides(cmd *cobra.Command) map[string]string {
	out := make(map[string]string)
	pf := cmd.Flags()
	if pf.Changed("rpc-url") {
		out["RPC_URL"] = flags.RPCURL
	}
	if pf.Changed("contract") {
		out["NFT_CONTRACT_ADDRESS"] = flags.Contract
	}
	if pf.Changed("chain-id") {
		out["CHAIN_ID"] = strconv.FormatInt(flags.ChainID, 10)
	}
	if pf.Changed("log-level") {
		out["LOG_LEVEL"] = flags.LogLevel
	}
	if pf.Changed("log-format") {
		out["LOG_FORMAT"] = flags.LogFormat
	}
	return out
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"novatok-explorer/internal/chain"
	"novatok-explorer/internal/erc721"
	"novatok-explorer/internal/gallery"
	"novatok-explorer/internal/metadata"
	"novatok-explorer/internal/storage"
	chstore "novatok-explorer/internal/storage/clickhouse"
	"novatok-explorer/internal/storage/memory"
	pgstore "novatok-explorer/internal/storage/postgres"
)

// stores holds the ledgers chosen from configuration.
type stores struct {
	mints     storage.MintStore
	transfers storage.TransferEventStore
}

// openStores connects to PostgreSQL and ClickHouse when their DSNs are
// set and falls back to memory otherwise.
func openStores(ctx context.Context) (*stores, func(), error) {
	s := &stores{
		mints:     memory.NewMintStore(),
		transfers: memory.NewTransferEventStore(),
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		s.mints = pgstore.NewMintStore(pool)
		logger.Info("mint ledger: postgres")
	} else {
		logger.Info("mint ledger: memory")
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := chstore.Open(ctx, cfg.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open clickhouse: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		s.transfers = chstore.NewTransferEventStore(conn)
		logger.Info("transfer store: clickhouse", zap.String("database", conn.Database()))
	} else {
		logger.Info("transfer store: memory")
	}

	return s, cleanup, nil
}

func newRPCClient() *chain.HTTPClient {
	return chain.NewHTTPClient(cfg.RPCURL, chain.WithLogger(logger))
}

// newMinter returns nil when the configuration cannot mint.
func newMinter(client chain.RPCClient) (*erc721.Minter, error) {
	if !cfg.Mode().CanMint() {
		return nil, nil
	}

	var sender erc721.Sender
	if cfg.PrivateKey != "" {
		ks, err := erc721.NewKeySender(client, cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		sender = ks
	} else {
		sender = erc721.NewNodeSender(client, common.HexToAddress(cfg.WalletAddress))
	}

	return erc721.NewMinter(client, cfg.Contract(), sender,
		erc721.WithMintMethod(cfg.MintMethod),
		erc721.WithMinterLogger(logger),
	)
}

// newResolver builds the metadata resolver. The returned func releases its cache.
func newResolver(ctx context.Context, codec *metadata.Codec) (*metadata.Resolver, func(), error) {
	opts := []metadata.ResolverOption{
		metadata.WithGateway(cfg.IPFSGateway),
		metadata.WithCodec(codec),
		metadata.WithResolverLogger(logger),
	}
	if cfg.MetadataCacheTTL <= 0 {
		return metadata.NewResolver(opts...), func() {}, nil
	}

	cache, err := metadata.NewCache(ctx, cfg.MetadataCacheTTL)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, metadata.WithCache(cache))
	return metadata.NewResolver(opts...), func() { _ = cache.Close() }, nil
}

// newService wires the gallery service. The returned cleanup closes stores.
func newService(ctx context.Context) (*gallery.Service, *chain.HTTPClient, func(), error) {
	st, cleanup, err := openStores(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	client := newRPCClient()
	minter, err := newMinter(client)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("configure minter: %w", err)
	}

	codec := metadata.NewCodec()
	resolver, closeCache, err := newResolver(ctx, codec)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("configure resolver: %w", err)
	}
	closeStores := cleanup
	cleanup = func() {
		closeCache()
		closeStores()
	}

	svc := gallery.New(cfg, client,
		gallery.WithMinter(minter),
		gallery.WithCodec(codec),
		gallery.WithResolver(resolver),
		gallery.WithMintStore(st.mints),
		gallery.WithTransferStore(st.transfers),
		gallery.WithLogger(logger),
	)

	logger.Info("configured",
		zap.Stringer("mode", cfg.Mode()),
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("contract", cfg.ContractAddress),
		zap.String("rpc", cfg.RPCURL))
	if !cfg.ContractConfigured() {
		logger.Warn("no valid NFT_CONTRACT_ADDRESS; running in demo mode")
	}
	return svc, client, cleanup, nil
}

// signalContext is canceled on SIGINT or SIGTERM. A second signal, or a
// shutdown that takes longer than 30s, exits immediately.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
			signal.Stop(sigCh)
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit", zap.Stringer("signal", sig))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	return ctx, cancel
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

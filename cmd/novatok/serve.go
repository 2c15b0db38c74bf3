package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"novatok-explorer/internal/api"
	"novatok-explorer/internal/chain"
	"novatok-explorer/internal/domain"
	"novatok-explorer/internal/erc721"
	"novatok-explorer/internal/gallery"
	"novatok-explorer/internal/logging"
)

var (
	serveAddr              string
	serveReconcileInterval time.Duration
	serveFromBlock         uint64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, transfer watcher and mint reconciler",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, client, cleanup, err := newService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		addr := cfg.HTTPAddr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}

		g, gctx := errgroup.WithContext(ctx)

		server := api.NewServer(svc, api.WithLogger(logger))
		g.Go(func() error {
			return server.ListenAndServe(gctx, addr)
		})

		if cfg.WSURL != "" && cfg.Mode().CanRead() {
			resume := serveFromBlock
			g.Go(func() error {
				return superviseWatcher(gctx, func(ctx context.Context) error {
					return runWatcher(ctx, svc, client, &resume, nil)
				}, watcherRestartDelay, watcherMaxRestartDelay)
			})
		} else {
			logger.Info("transfer watcher disabled", zap.Bool("ws_configured", cfg.WSURL != ""))
		}

		if cfg.Mode().CanRead() && serveReconcileInterval > 0 {
			g.Go(func() error {
				return reconcileLoop(gctx, svc, serveReconcileInterval)
			})
		}

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (HTTP_ADDR, default :8080)")
	serveCmd.Flags().DurationVar(&serveReconcileInterval, "reconcile-interval", 30*time.Second, "how often pending mints are re-checked (0 disables)")
	serveCmd.Flags().Uint64Var(&serveFromBlock, "from-block", 0, "backfill Transfer logs from this block before watching (0 disables)")
}

// Watcher restart backoff used by serve.
const (
	watcherRestartDelay    = 2 * time.Second
	watcherMaxRestartDelay = 2 * time.Minute
	// watcherHealthyAfter resets the backoff once a run lasted this long.
	watcherHealthyAfter = time.Minute
)

// superviseWatcher runs watch until ctx is canceled, restarting it after
// every failure with a doubling delay. Watcher failures are logged, never
// returned, so the API keeps serving.
func superviseWatcher(ctx context.Context, watch func(context.Context) error, minDelay, maxDelay time.Duration) error {
	log := logging.OrNop(logger)
	delay := minDelay

	for attempt := 1; ; attempt++ {
		started := time.Now()
		err := watch(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) >= watcherHealthyAfter {
			delay = minDelay
		}
		log.Warn("transfer watcher stopped, restarting",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxDelay)
	}
}

// runWatcher feeds Transfer events into the service's transfer store until
// ctx is canceled or the watcher fails. When *resume is non-zero, logs from
// that block are backfilled first; on return it holds the block a restart
// should backfill from.
func runWatcher(ctx context.Context, svc *gallery.Service, client chain.RPCClient, resume *uint64, onTransfer func(domain.TransferEvent)) error {
	wsCfg := chain.DefaultWSConfig()
	ws, err := chain.NewWSClient(ctx, cfg.WSURL, &wsCfg, logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	opts := []erc721.WatcherOption{erc721.WithWatcherLogger(logger)}
	if *resume > 0 {
		opts = append(opts, erc721.WithBackfill(client, *resume))
	}
	if onTransfer != nil {
		opts = append(opts, erc721.WithOnTransfer(onTransfer))
	}

	w := erc721.NewWatcher(ws, cfg.Contract(), svc.TransferStore(), opts...)
	err = w.Run(ctx)
	if next := w.Resume(); next > *resume {
		*resume = next
	}
	return err
}

func reconcileLoop(ctx context.Context, svc *gallery.Service, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := svc.Reconcile(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("reconcile pending mints", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

package erc721

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"novatok-explorer/internal/chain"
	"novatok-explorer/internal/domain"
	"novatok-explorer/internal/logging"
	"novatok-explorer/internal/observability"
)

// Watcher defaults.
const (
	DefaultBatchSize     = 100
	DefaultFlushInterval = 2 * time.Second
	// DefaultBackfillChunk stays under the eth_getLogs range cap of
	// public Sepolia endpoints.
	DefaultBackfillChunk = 1000
	flushTimeout         = 10 * time.Second
)

// TransferSink persists decoded transfers. Already stored events are skipped.
type TransferSink interface {
	InsertBulk(ctx context.Context, events []*domain.TransferEvent) error
}

// Watcher follows the contract's Transfer events and writes them to a sink
// in batches.
type Watcher struct {
	ws            chain.WSClient
	contract      common.Address
	sink          TransferSink
	backfill      chain.RPCClient
	backfillChunk uint64
	cursor        uint64 // next block to backfill from
	batchSize     int
	flushInterval time.Duration
	onTransfer    func(domain.TransferEvent)
	logger        *zap.Logger
	now           func() time.Time

	batch []*domain.TransferEvent
}

// WatcherOption configures Watcher.
type WatcherOption func(*Watcher)

// WithBackfill replays historical Transfer logs from fromBlock up to the
// current head over HTTP, once the live subscription is open.
func WithBackfill(client chain.RPCClient, fromBlock uint64) WatcherOption {
	return func(w *Watcher) {
		w.backfill = client
		w.cursor = fromBlock
	}
}

// WithBackfillChunk sets how many blocks one eth_getLogs call covers.
func WithBackfillChunk(blocks uint64) WatcherOption {
	return func(w *Watcher) {
		if blocks > 0 {
			w.backfillChunk = blocks
		}
	}
}

// WithBatchSize sets how many events are buffered before a flush.
func WithBatchSize(n int) WatcherOption {
	return func(w *Watcher) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithFlushInterval sets the periodic flush interval.
func WithFlushInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.flushInterval = d
		}
	}
}

// WithOnTransfer registers a callback invoked for every decoded transfer.
func WithOnTransfer(fn func(domain.TransferEvent)) WatcherOption {
	return func(w *Watcher) {
		w.onTransfer = fn
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logging.OrNop(l)
	}
}

// WithWatcherClock overrides time.Now for ObservedAt.
func WithWatcherClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) {
		w.now = now
	}
}

// NewWatcher creates a watcher for contract.
func NewWatcher(ws chain.WSClient, contract common.Address, sink TransferSink, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		ws:            ws,
		contract:      contract,
		sink:          sink,
		backfillChunk: DefaultBackfillChunk,
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		logger:        zap.NewNop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run opens the live subscription, backfills (if configured), then consumes
// the subscription until ctx is canceled or the channel closes. Live events
// that overlap the backfill are left to the sink to deduplicate. Pending
// events are flushed before returning. Cancellation is not an error.
func (w *Watcher) Run(ctx context.Context) error {
	logs, err := w.ws.SubscribeLogs(ctx, chain.LogFilter{
		Addresses: []common.Address{w.contract},
		Topics:    [][]common.Hash{{TransferTopic}},
	})
	if err != nil {
		return fmt.Errorf("subscribe transfers: %w", err)
	}
	w.logger.Info("watching transfers", zap.String("contract", w.contract.Hex()))

	if w.backfill != nil {
		if err := w.runBackfill(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush(ctx)
			return nil
		case l, ok := <-logs:
			if !ok {
				w.flush(ctx)
				return chain.ErrClosed
			}
			w.handle(ctx, l)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// Resume returns the block a restarted watcher should backfill from: the
// backfill progress or the newest block seen live, whichever is later.
// It is 0 when nothing has been processed. Call it after Run returns.
func (w *Watcher) Resume() uint64 {
	return w.cursor
}

func (w *Watcher) runBackfill(ctx context.Context) error {
	head, err := w.backfill.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("backfill head: %w", err)
	}

	start, total := w.cursor, 0
	for from := w.cursor; from <= head; {
		to := min(from+w.backfillChunk-1, head)

		logs, err := w.backfill.GetLogs(ctx, chain.FilterQuery{
			FromBlock: from,
			ToBlock:   &to,
			Addresses: []common.Address{w.contract},
			Topics:    [][]common.Hash{{TransferTopic}},
		})
		if err != nil {
			w.flush(ctx)
			return fmt.Errorf("backfill blocks %d-%d: %w", from, to, err)
		}
		for _, l := range logs {
			w.handle(ctx, l)
		}
		w.flush(ctx)

		total += len(logs)
		from = to + 1
		w.cursor = max(w.cursor, from)
	}

	w.logger.Info("backfill complete",
		zap.Uint64("from_block", start),
		zap.Uint64("head", head),
		zap.Int("logs", total))
	return nil
}

func (w *Watcher) handle(ctx context.Context, l domain.Log) {
	ev, ok := ParseTransfer(l)
	if !ok {
		w.logger.Debug("skipping non-transfer log", zap.String("tx", l.TxHash.Hex()), zap.Uint("index", l.Index))
		return
	}
	ev.ObservedAt = w.now().UnixMilli()
	// The block is rescanned on resume; its other logs may not have arrived yet.
	w.cursor = max(w.cursor, ev.BlockNumber)

	observability.RecordTransferObserved(string(ev.Kind()))
	if w.onTransfer != nil {
		w.onTransfer(ev)
	}

	w.batch = append(w.batch, &ev)
	if len(w.batch) >= w.batchSize {
		w.flush(ctx)
	}
}

// flush writes the batch. A failed batch is logged and dropped.
func (w *Watcher) flush(ctx context.Context) {
	if len(w.batch) == 0 || w.sink == nil {
		w.batch = w.batch[:0]
		return
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()

	if err := w.sink.InsertBulk(fctx, w.batch); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("store transfers", zap.Int("count", len(w.batch)), zap.Error(err))
	} else if err == nil {
		w.logger.Debug("stored transfers", zap.Int("count", len(w.batch)))
	}
	w.batch = nil
}

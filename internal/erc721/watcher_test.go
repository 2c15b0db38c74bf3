package erc721

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novatok-explorer/internal/chain"
	"novatok-explorer/internal/chain/stub"
	"novatok-explorer/internal/domain"
)

type fakeWS struct {
	ch          chan domain.Log
	filter      chain.LogFilter
	err         error
	onSubscribe func()
}

func (f *fakeWS) SubscribeLogs(_ context.Context, filter chain.LogFilter) (<-chan domain.Log, error) {
	if f.onSubscribe != nil {
		f.onSubscribe()
	}
	if f.err != nil {
		return nil, f.err
	}
	f.filter = filter
	return f.ch, nil
}

func (f *fakeWS) Close() error { return nil }

type recordingSink struct {
	mu      sync.Mutex
	events  []*domain.TransferEvent
	batches int
}

func (s *recordingSink) InsertBulk(_ context.Context, events []*domain.TransferEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	s.batches++
	return nil
}

func (s *recordingSink) snapshot() []*domain.TransferEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.TransferEvent(nil), s.events...)
}

func TestWatcher_ConsumesUntilClosed(t *testing.T) {
	ws := &fakeWS{ch: make(chan domain.Log, 8)}
	sink := &recordingSink{}
	fixed := time.UnixMilli(1_700_000_000_000)

	var seen []string
	w := NewWatcher(ws, testContract, sink,
		WithBatchSize(2),
		WithFlushInterval(time.Hour),
		WithWatcherClock(func() time.Time { return fixed }),
		WithOnTransfer(func(ev domain.TransferEvent) { seen = append(seen, ev.TokenID) }))

	ws.ch <- transferLog(common.Address{}, testOwner, big.NewInt(1))
	ws.ch <- domain.Log{Topics: []common.Hash{common.HexToHash("0x01")}}
	ws.ch <- transferLog(testOwner, testContract, big.NewInt(1))
	ws.ch <- transferLog(common.Address{}, testOwner, big.NewInt(2))
	close(ws.ch)

	err := w.Run(context.Background())
	assert.ErrorIs(t, err, chain.ErrClosed)

	events := sink.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, []string{"1", "1", "2"}, seen)
	assert.Equal(t, domain.TransferKindMint, events[0].Kind())
	assert.Equal(t, domain.TransferKindTransfer, events[1].Kind())
	assert.Equal(t, int64(1_700_000_000_000), events[0].ObservedAt)
	assert.Equal(t, 2, sink.batches)

	require.Len(t, ws.filter.Addresses, 1)
	assert.Equal(t, testContract, ws.filter.Addresses[0])
	assert.Equal(t, TransferTopic, ws.filter.Topics[0][0])
}

func TestWatcher_FlushesOnCancel(t *testing.T) {
	ws := &fakeWS{ch: make(chan domain.Log, 1)}
	sink := &recordingSink{}
	w := NewWatcher(ws, testContract, sink, WithFlushInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	ws.ch <- transferLog(common.Address{}, testOwner, big.NewInt(5))
	require.Eventually(t, func() bool { return len(ws.ch) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	require.Len(t, sink.snapshot(), 1)
}

func TestWatcher_Backfill(t *testing.T) {
	st := stub.NewRPCClient()
	old := transferLog(common.Address{}, testOwner, big.NewInt(1))
	old.Block = 10
	recent := transferLog(common.Address{}, testOwner, big.NewInt(2))
	recent.Block = 20
	other := transferLog(common.Address{}, testOwner, big.NewInt(3))
	other.Address = common.HexToAddress("0x01")
	other.Block = 20
	st.Logs = []domain.Log{old, recent, other}
	st.Head = 25

	ws := &fakeWS{ch: make(chan domain.Log)}
	close(ws.ch)
	sink := &recordingSink{}

	w := NewWatcher(ws, testContract, sink, WithBackfill(st, 15))
	assert.ErrorIs(t, w.Run(context.Background()), chain.ErrClosed)

	events := sink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "2", events[0].TokenID)
}

func TestWatcher_BackfillInChunks(t *testing.T) {
	st := stub.NewRPCClient()
	st.Head = 25
	st.MaxLogRange = 10
	for i, block := range []uint64{5, 14, 15, 25} {
		l := transferLog(common.Address{}, testOwner, big.NewInt(int64(i+1)))
		l.Block = block
		l.Index = uint(i)
		st.Logs = append(st.Logs, l)
	}

	var queriesAtSubscribe int
	ws := &fakeWS{ch: make(chan domain.Log)}
	ws.onSubscribe = func() { queriesAtSubscribe = st.LogQueryCount() }
	close(ws.ch)
	sink := &recordingSink{}

	w := NewWatcher(ws, testContract, sink, WithBackfill(st, 5), WithBackfillChunk(10))
	assert.ErrorIs(t, w.Run(context.Background()), chain.ErrClosed)

	assert.Equal(t, 0, queriesAtSubscribe, "subscription must be open before backfill")
	require.Len(t, st.LogQueries, 3)
	ranges := make([][2]uint64, 0, len(st.LogQueries))
	for _, q := range st.LogQueries {
		require.NotNil(t, q.ToBlock)
		ranges = append(ranges, [2]uint64{q.FromBlock, *q.ToBlock})
	}
	assert.Equal(t, [][2]uint64{{5, 14}, {15, 24}, {25, 25}}, ranges)
	assert.Len(t, sink.snapshot(), 4)
	assert.Equal(t, uint64(26), w.Resume())
}

func TestWatcher_BackfillFailureKeepsProgress(t *testing.T) {
	st := stub.NewRPCClient()
	st.Head = 30
	st.MaxLogRange = 10

	ws := &fakeWS{ch: make(chan domain.Log)}
	w := NewWatcher(ws, testContract, &recordingSink{}, WithBackfill(st, 1), WithBackfillChunk(10))
	require.NoError(t, w.runBackfill(context.Background()))
	assert.Equal(t, uint64(31), w.Resume())

	w = NewWatcher(ws, testContract, &recordingSink{}, WithBackfill(st, 1), WithBackfillChunk(20))
	err := w.Run(context.Background())
	assert.ErrorIs(t, err, stub.ErrRangeTooWide)
	assert.Equal(t, uint64(1), w.Resume())
}

func TestWatcher_SubscribeError(t *testing.T) {
	st := stub.NewRPCClient()
	ws := &fakeWS{err: chain.ErrClosed}
	w := NewWatcher(ws, testContract, &recordingSink{}, WithBackfill(st, 1))

	assert.ErrorIs(t, w.Run(context.Background()), chain.ErrClosed)
	assert.Zero(t, st.LogQueryCount())
}

func TestWatcher_ResumeTracksLiveBlocks(t *testing.T) {
	ws := &fakeWS{ch: make(chan domain.Log, 2)}
	l := transferLog(common.Address{}, testOwner, big.NewInt(1))
	l.Block = 42
	ws.ch <- l
	close(ws.ch)

	w := NewWatcher(ws, testContract, &recordingSink{})
	assert.Zero(t, w.Resume())
	assert.ErrorIs(t, w.Run(context.Background()), chain.ErrClosed)
	assert.Equal(t, uint64(42), w.Resume())
}

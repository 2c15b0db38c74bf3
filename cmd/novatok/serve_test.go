package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"novatok-explorer/internal/api"
	"novatok-explorer/internal/config"
	"novatok-explorer/internal/gallery"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestSuperviseWatcher_APISurvivesWatcherFailures(t *testing.T) {
	svc := gallery.New(config.Config{MintMethod: "mint"}, nil)
	server := api.NewServer(svc)
	addr := freeAddr(t)

	var attempts atomic.Int32
	failing := func(context.Context) error {
		attempts.Add(1)
		return errors.New("websocket dial: connection refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.ListenAndServe(gctx, addr) })
	g.Go(func() error { return superviseWatcher(gctx, failing, time.Millisecond, 5*time.Millisecond) })

	require.Eventually(t, func() bool { return attempts.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, gctx.Err())

	cancel()
	assert.NoError(t, g.Wait())
}

func TestSuperviseWatcher_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var attempts atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- superviseWatcher(ctx, func(ctx context.Context) error {
			attempts.Add(1)
			<-ctx.Done()
			return ctx.Err()
		}, time.Millisecond, time.Millisecond)
	}()

	require.Eventually(t, func() bool { return attempts.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}
	assert.Equal(t, int32(1), attempts.Load())
}

package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Embedded(t *testing.T) {
	uri, err := Encode(Fields{Name: "Nova #1", Description: "demo", Image: "https://x/y.png"})
	require.NoError(t, err)

	m := NewResolver().Resolve(context.Background(), uri)
	require.NotNil(t, m)
	assert.Equal(t, "Nova #1", m.Name)
}

func TestResolver_EmbeddedMalformed(t *testing.T) {
	assert.Nil(t, NewResolver().Resolve(context.Background(), Base64JSONPrefix+"%%%"))
	assert.Nil(t, NewResolver().Resolve(context.Background(), ""))
}

func TestResolver_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/meta/7.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Remote","description":"d","image":"ipfs://bafy/7.png","attributes":[{"trait_type":"Level","value":7}]}`))
	}))
	defer server.Close()

	m := NewResolver().Resolve(context.Background(), server.URL+"/meta/7.json")
	require.NotNil(t, m)
	assert.Equal(t, "Remote", m.Name)
	level, ok := m.Attr("Level")
	assert.True(t, ok)
	assert.Equal(t, "7", level)
}

func TestResolver_IPFSGateway(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"name":"From IPFS"}`))
	}))
	defer server.Close()

	r := NewResolver(WithGateway(server.URL + "/ipfs"))
	m := r.Resolve(context.Background(), "ipfs://bafybeigdyrzt/1.json")
	require.NotNil(t, m)
	assert.Equal(t, "From IPFS", m.Name)
	assert.Equal(t, "/ipfs/bafybeigdyrzt/1.json", gotPath)
}

func TestResolver_GatewayURL(t *testing.T) {
	r := NewResolver(WithGateway("https://gw.example/ipfs/"))
	assert.Equal(t, "https://gw.example/ipfs/bafy/1.png", r.GatewayURL("ipfs://bafy/1.png"))
	assert.Equal(t, "https://gw.example/ipfs/bafy/1.png", r.GatewayURL("ipfs://ipfs/bafy/1.png"))
	assert.Equal(t, "https://x/y.png", r.GatewayURL("https://x/y.png"))
}

func TestResolver_Failures(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	notJSON := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>nope</html>"))
	}))
	defer notJSON.Close()

	tooBig := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"` + strings.Repeat("a", 256) + `"}`))
	}))
	defer tooBig.Close()

	r := NewResolver(WithMaxBodyBytes(64))
	ctx := context.Background()

	assert.Nil(t, r.Resolve(ctx, notFound.URL+"/1.json"))
	assert.Nil(t, r.Resolve(ctx, notJSON.URL+"/1.json"))
	assert.Nil(t, r.Resolve(ctx, tooBig.URL+"/1.json"))
	assert.Nil(t, r.Resolve(ctx, "ar://abc"))
}

func TestResolver_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, NewResolver().Resolve(ctx, server.URL+"/1.json"))
}

func TestResolver_Cache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"name":"Cached","attributes":[{"trait_type":"Level","value":3}]}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache, err := NewCache(ctx, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	r := NewResolver(WithCache(cache))
	for i := 0; i < 3; i++ {
		m := r.Resolve(ctx, server.URL+"/1.json")
		require.NotNil(t, m)
		assert.Equal(t, "Cached", m.Name)
		level, _ := m.Attr("Level")
		assert.Equal(t, "3", level)
	}
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, cache.Len())

	// Failures are not cached.
	assert.Nil(t, r.Resolve(ctx, server.URL+"/missing.json"))
	assert.Nil(t, r.Resolve(ctx, server.URL+"/missing.json"))
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestNewCache_InvalidTTL(t *testing.T) {
	_, err := NewCache(context.Background(), 0)
	assert.Error(t, err)
}

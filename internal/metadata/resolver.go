package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"novatok-explorer/internal/domain"
	"novatok-explorer/internal/logging"
	"novatok-explorer/internal/observability"
)

// Resolver defaults.
const (
	DefaultGateway      = "https://ipfs.io/ipfs/"
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxBodyBytes = 1 << 20
)

const ipfsScheme = "ipfs://"

var errBodyTooLarge = errors.New("metadata document too large")

// Resolver turns any token URI into metadata. Embedded URIs are decoded
// offline; http(s) and ipfs URIs are fetched. Every failure yields nil.
type Resolver struct {
	codec    *Codec
	client   *http.Client
	gateway  string
	maxBytes int64
	cache    *Cache
	logger   *zap.Logger
}

// ResolverOption configures Resolver.
type ResolverOption func(*Resolver)

// WithGateway sets the HTTP gateway used for ipfs:// URIs.
func WithGateway(gateway string) ResolverOption {
	return func(r *Resolver) {
		if gateway != "" {
			r.gateway = gateway
		}
	}
}

// WithResolverHTTPClient sets a custom http.Client.
func WithResolverHTTPClient(client *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithMaxBodyBytes bounds fetched documents.
func WithMaxBodyBytes(n int64) ResolverOption {
	return func(r *Resolver) {
		r.maxBytes = n
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logging.OrNop(l)
	}
}

// WithCache caches fetched documents in c.
func WithCache(c *Cache) ResolverOption {
	return func(r *Resolver) {
		r.cache = c
	}
}

// WithCodec replaces the codec used for embedded URIs.
func WithCodec(c *Codec) ResolverOption {
	return func(r *Resolver) {
		r.codec = c
	}
}

// NewResolver creates a resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		codec:    defaultCodec,
		client:   &http.Client{Timeout: DefaultFetchTimeout},
		gateway:  DefaultGateway,
		maxBytes: DefaultMaxBodyBytes,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if !strings.HasSuffix(r.gateway, "/") {
		r.gateway += "/"
	}
	return r
}

// Resolve returns metadata for uri, or nil when none can be obtained.
func (r *Resolver) Resolve(ctx context.Context, uri string) *domain.TokenMetadata {
	kind := Classify(uri)
	switch kind {
	case KindEmpty:
		return nil
	case KindBase64JSON, KindPlainJSON:
		m, err := r.codec.Parse(uri)
		if err != nil {
			observability.RecordDecodeFailure("malformed")
			r.logger.Debug("decode token uri", zap.Stringer("kind", kind), zap.Error(err))
			return nil
		}
		return m
	}

	target, ok := r.httpURL(uri)
	if !ok {
		observability.RecordDecodeFailure("unsupported_scheme")
		r.logger.Debug("unsupported token uri scheme", zap.String("uri", uri))
		return nil
	}

	if r.cache != nil {
		if m, ok := r.cache.get(target); ok {
			return m
		}
	}

	m, err := r.fetch(ctx, target)
	if err != nil {
		observability.RecordDecodeFailure("fetch")
		r.logger.Warn("fetch token metadata", zap.String("url", target), zap.Error(err))
		return nil
	}
	if r.cache != nil {
		if err := r.cache.set(target, m); err != nil {
			r.logger.Debug("cache token metadata", zap.String("url", target), zap.Error(err))
		}
	}
	return m
}

// GatewayURL rewrites ipfs:// URIs through the gateway and returns other
// URIs unchanged. Useful for image links inside metadata.
func (r *Resolver) GatewayURL(uri string) string {
	if strings.HasPrefix(uri, ipfsScheme) {
		return r.gateway + strings.TrimPrefix(strings.TrimPrefix(uri, ipfsScheme), "ipfs/")
	}
	return uri
}

func (r *Resolver) httpURL(uri string) (string, bool) {
	switch {
	case strings.HasPrefix(uri, ipfsScheme):
		return r.GatewayURL(uri), true
	case strings.HasPrefix(uri, "https://"), strings.HasPrefix(uri, "http://"):
		return uri, true
	default:
		return "", false
	}
}

func (r *Resolver) fetch(ctx context.Context, url string) (*domain.TokenMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > r.maxBytes {
		return nil, errBodyTooLarge
	}

	var m domain.TokenMetadata
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrMalformed, err)
	}
	return &m, nil
}

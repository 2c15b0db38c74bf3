// Package api exposes the gallery service over HTTP using gin.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"novatok-explorer/internal/domain"
	"novatok-explorer/internal/gallery"
	"novatok-explorer/internal/logging"
	"novatok-explorer/internal/metadata"
	"novatok-explorer/internal/observability"
)

// Service is the application surface the handlers need.
type Service interface {
	Info() gallery.Info
	Gallery(ctx context.Context, owner string) ([]gallery.Item, error)
	Mint(ctx context.Context, req gallery.MintRequest) (*gallery.MintResult, error)
	MintStatus(ctx context.Context, txHash string) (*domain.MintRecord, error)
	Mints(ctx context.Context, recipient string, limit int) ([]*domain.MintRecord, error)
	Activity(ctx context.Context, limit int) ([]*domain.TransferEvent, error)
	TokenHistory(ctx context.Context, tokenID string) ([]*domain.TransferEvent, error)
}

var _ Service = (*gallery.Service)(nil)

// Server serves the HTTP API.
type Server struct {
	svc        Service
	codec      *metadata.Codec
	logger     *zap.Logger
	router     *gin.Engine
	httpServer *http.Server
	started    time.Time
}

// Option configures Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logging.OrNop(l)
	}
}

// WithCodec sets the codec behind the metadata endpoints.
func WithCodec(c *metadata.Codec) Option {
	return func(s *Server) {
		if c != nil {
			s.codec = c
		}
	}
}

// NewServer builds the router. Call ListenAndServe to start serving.
func NewServer(svc Service, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		codec:   metadata.NewCodec(),
		logger:  zap.NewNop(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(requestID(), accessLog(s.logger), recordMetrics(), gin.CustomRecovery(s.recovered))
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		writeError(c, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	v := r.Group("/api")
	{
		v.GET("/config", s.config)
		v.GET("/owners/:address/nfts", s.ownerNFTs)
		v.GET("/owners/:address/mints", s.ownerMints)
		v.POST("/mint", s.mint)
		v.GET("/mints/:txHash", s.mintStatus)
		v.GET("/activity", s.activity)
		v.GET("/tokens/:tokenId/transfers", s.tokenTransfers)
		v.POST("/metadata/encode", s.encodeMetadata)
		v.POST("/metadata/decode", s.decodeMetadata)
	}

	s.router = r
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) recovered(c *gin.Context, v any) {
	s.logger.Error("handler panic", zap.Any("panic", v), zap.String("path", c.Request.URL.Path))
	writeError(c, http.StatusInternalServerError, codeInternal, "internal error")
}

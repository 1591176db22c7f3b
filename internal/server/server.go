// Package server exposes mapping detection, batch normalization, seller
// lookup and single invoice validation over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ginjaninja78/fbr-invoicer/internal/fbr"
	"github.com/ginjaninja78/fbr-invoicer/internal/logger"
	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

// SellerStore is the part of seller.Store the API reads.
type SellerStore interface {
	Get(ctx context.Context, id int64) (types.SellerProfile, error)
	Search(ctx context.Context, term string) ([]types.SellerProfile, error)
	List(ctx context.Context) ([]types.SellerProfile, error)
}

// InvoiceValidator is satisfied by *fbr.Client.
type InvoiceValidator interface {
	Validate(ctx context.Context, token string, inv types.Invoice) fbr.Response
}

// Options configure the API.
type Options struct {
	Sellers        SellerStore
	FBR            InvoiceValidator
	MaxConcurrency int
	MaxUploadBytes int64
	Now            func() time.Time
}

// Server owns the router and its dependencies.
type Server struct {
	opts   Options
	log    zerolog.Logger
	router *gin.Engine
}

// New builds the router.
func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}

	s := &Server{opts: opts, log: logger.WithComponent("server")}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))
	r.MaxMultipartMemory = opts.MaxUploadBytes

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "service": "fbr-invoicer"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/mapping/detect", s.handleDetect)
		v1.POST("/batches", s.handleBatch)
		v1.GET("/sellers", s.handleSellers)
		v1.GET("/sellers/:id", s.handleSeller)
		v1.POST("/invoices/validate", s.handleValidateInvoice)
	}

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info().Msg("shutting down API")
		return srv.Shutdown(shutdownCtx)
	}
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/openmined/assetsync/internal/server/blob"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	config  *Config
	server  *http.Server
	blobSvc *blob.BlobService
	watcher *AssetWatcher
}

// New builds the asset backend from cfg. An S3 bucket wins over a local
// directory when both are configured.
func New(ctx context.Context, cfg *Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var backend blob.Backend
	if cfg.S3 != nil {
		s3Backend, err := blob.NewS3BackendWithConfig(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("s3 backend: %w", err)
		}
		backend = s3Backend
	} else {
		local, err := blob.NewLocalBackend(cfg.Assets.Dir)
		if err != nil {
			return nil, err
		}
		backend = local
	}

	return NewWithBackend(cfg, backend)
}

// NewWithBackend wires routes around an existing backend. cfg must already
// be valid.
func NewWithBackend(cfg *Config, backend blob.Backend) (*Server, error) {
	blobSvc := blob.NewBlobService(backend, blob.ServiceConfig{
		ManifestName: cfg.Assets.ManifestName,
		VersionName:  cfg.Assets.VersionName,
		Version:      cfg.Assets.Version,
		CacheTTL:     cfg.Assets.CacheTTL,
	})

	handler, err := SetupRoutes(cfg, blobSvc)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:  cfg,
		blobSvc: blobSvc,
		server: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	if local, ok := backend.(*blob.LocalBackend); ok && cfg.Assets.Watch {
		s.watcher = NewAssetWatcher(local.Root(), blobSvc.Invalidate)
	}

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Blob() *blob.BlobService {
	return s.blobSvc
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("assetsync server start", "config", s.config)
	defer slog.Info("assetsync server stop")

	ln, err := net.Listen("tcp", s.config.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.HTTP.Addr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := s.runHttpServer(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server start error", "error", err)
			return err
		}
		slog.Info("http server stopped")
		return nil
	})

	if s.watcher != nil {
		eg.Go(func() error {
			return s.watcher.Run(egCtx)
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("assetsync server shutdown signal")
		return s.Stop()
	})

	return eg.Wait()
}

func (s *Server) Stop() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(
		s.server.Shutdown(shutdownCtx),
		s.blobSvc.Close(),
	)
}

func (s *Server) runHttpServer(ln net.Listener) error {
	if s.config.HTTP.TLS() {
		slog.Info("server start tls", "addr", ln.Addr().String(), "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ServeTLS(ln, s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", ln.Addr().String())
	return s.server.Serve(ln)
}

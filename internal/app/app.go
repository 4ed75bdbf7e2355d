// Package app wires configuration, storage and transports into the nebula
// registry server and the CLI client state.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/blackportal-ai/nebula/api/proto"
	grpcapi "github.com/blackportal-ai/nebula/internal/api/grpc"
	httpapi "github.com/blackportal-ai/nebula/internal/api/http"
	"github.com/blackportal-ai/nebula/internal/catalog"
	"github.com/blackportal-ai/nebula/internal/config"
	"github.com/blackportal-ai/nebula/internal/metrics"
	"github.com/blackportal-ai/nebula/internal/model"
	"github.com/blackportal-ai/nebula/internal/remote"
	"github.com/blackportal-ai/nebula/internal/server"
	"github.com/blackportal-ai/nebula/internal/storage"
	"github.com/blackportal-ai/nebula/internal/syncer"
)

// App manages the registry server lifecycle.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	// Shared resources
	source   storage.MetadataSource
	metrics  *metrics.Metrics
	shutdown *server.ShutdownManager

	// Service components
	grpcServer   *grpc.Server
	grpcListener net.Listener
	httpServer   *http.Server
	httpListener net.Listener
	upstream     *remote.Client
	mirror       *syncer.Daemon

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Start opens the configured backend and starts the gRPC server, the HTTP
// API and, when an upstream is configured, the mirror daemon.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.metrics = metrics.New()
	a.shutdown = server.NewShutdownManager(server.ShutdownConfig{
		ShutdownTimeout: a.cfg.Registry.ShutdownTimeout,
		Logger:          a.logger,
	})

	if err := a.initSource(ctx); err != nil {
		a.abort()
		return fmt.Errorf("failed to open %s backend: %w", a.cfg.Registry.Backend, err)
	}
	a.refreshPackageCount(ctx)

	if err := a.startGRPC(); err != nil {
		a.abort()
		return fmt.Errorf("failed to start gRPC server: %w", err)
	}

	if a.cfg.Registry.HTTPAddr != "" {
		if err := a.startHTTP(); err != nil {
			a.abort()
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	if a.cfg.Sync.Upstream != "" {
		if err := a.startMirror(ctx); err != nil {
			a.abort()
			return fmt.Errorf("failed to start mirror: %w", err)
		}
	}

	a.logger.Info("registry started",
		zap.String("backend", string(a.cfg.Registry.Backend)),
		zap.String("grpc_addr", a.grpcListener.Addr().String()),
	)
	return nil
}

// initSource opens the metadata source selected by registry.backend.
func (a *App) initSource(ctx context.Context) error {
	switch a.cfg.Registry.Backend {
	case config.BackendRootFolder:
		src, err := storage.NewRootFolderSource(a.cfg.Registry.Root, a.logger)
		if err != nil {
			return err
		}
		a.source = src
		a.logger.Info("serving root folder", zap.String("root", src.Root()), zap.Int("packages", src.Len()))

	case config.BackendSQLite:
		cat, err := catalog.NewCatalog(a.cfg.CatalogPath(), a.logger)
		if err != nil {
			return err
		}
		a.source = cat
		a.shutdown.RegisterCloser(cat)
		a.logger.Info("serving sqlite catalog", zap.String("path", a.cfg.CatalogPath()))

	case config.BackendObject:
		store, err := a.openObjectStorage(ctx)
		if err != nil {
			return err
		}
		a.source = storage.NewObjectSource(store, storage.ObjectSourceConfig{}, a.logger)

	default:
		return fmt.Errorf("unsupported backend: %s", a.cfg.Registry.Backend)
	}
	return nil
}

func (a *App) openObjectStorage(ctx context.Context) (storage.ObjectStorage, error) {
	switch a.cfg.Storage.Type {
	case "local":
		a.logger.Info("object storage initialized", zap.String("type", "local"), zap.String("path", a.cfg.Storage.Path))
		return storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		s3Cfg := storage.DefaultS3Config()
		if a.cfg.Storage.S3.Region != "" {
			s3Cfg.Region = a.cfg.Storage.S3.Region
		}
		s3Cfg.Endpoint = a.cfg.Storage.S3.Endpoint
		s3Cfg.UsePathStyle = a.cfg.Storage.S3.UsePathStyle
		s3Cfg.Prefix = a.cfg.Storage.S3.Prefix

		a.logger.Info("object storage initialized",
			zap.String("type", "s3"),
			zap.String("bucket", a.cfg.Storage.S3.Bucket),
			zap.String("region", s3Cfg.Region),
			zap.String("endpoint", s3Cfg.Endpoint),
		)
		return storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, s3Cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
}

func (a *App) startGRPC() error {
	lis, err := net.Listen("tcp", a.cfg.Registry.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Registry.GRPCAddr, err)
	}
	a.grpcListener = lis

	a.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(
		server.UnaryShutdownInterceptor(a.shutdown),
		grpcapi.UnaryServerInterceptor(a.metrics, a.logger),
	))
	proto.RegisterNebulaPackageQueryServer(a.grpcServer, grpcapi.NewRegistryServer(a.source, a.logger))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		if err := a.shutdown.ServeGRPC(a.grpcServer, lis); err != nil {
			a.logger.Error("gRPC server error", zap.Error(err))
		}
	}()
	return nil
}

func (a *App) startHTTP() error {
	lis, err := net.Listen("tcp", a.cfg.Registry.HTTPAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Registry.HTTPAddr, err)
	}
	a.httpListener = lis

	handler := httpapi.ChainMiddleware(server.ShutdownMiddleware(a.shutdown))(
		httpapi.NewRouter(a.source, a.metrics, a.logger),
	)
	a.httpServer = &http.Server{
		Handler:      handler,
		ReadTimeout:  a.cfg.Registry.ReadTimeout,
		WriteTimeout: a.cfg.Registry.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("HTTP server listening", zap.String("addr", lis.Addr().String()))
		if err := a.shutdown.ServeHTTP(a.httpServer, lis); err != nil {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// startMirror keeps the source in step with the upstream registry.
func (a *App) startMirror(ctx context.Context) error {
	upstream, err := remote.Dial(a.cfg.Sync.Upstream, remote.Options{
		Timeout: a.cfg.Remote.Timeout,
		Logger:  a.logger.Named("upstream"),
	})
	if err != nil {
		return err
	}
	a.upstream = upstream
	a.shutdown.RegisterCloser(upstream)

	engine := syncer.NewEngine(upstream, a.source, syncer.Options{
		PageSize:  a.cfg.Sync.PageSize,
		RateLimit: a.cfg.Sync.RateLimit,
		Metrics:   a.metrics,
		Logger:    a.logger.Named("sync"),
	})

	daemonCfg := syncer.DefaultDaemonConfig()
	daemonCfg.Interval = a.cfg.Sync.Interval
	daemonCfg.OnReport = func(report *syncer.Report, err error) {
		if err == nil && report.Synced > 0 {
			a.refreshPackageCount(ctx)
		}
	}
	a.mirror = syncer.NewDaemon(daemonCfg, engine, a.logger.Named("mirror"))
	if err := a.mirror.Start(ctx); err != nil {
		return err
	}
	a.shutdown.RegisterCloser(a.mirror)

	a.logger.Info("mirroring upstream registry",
		zap.String("upstream", a.cfg.Sync.Upstream),
		zap.Duration("interval", daemonCfg.Interval),
	)
	return nil
}

func (a *App) refreshPackageCount(ctx context.Context) {
	pkgs, err := a.source.List(ctx, model.SortSettings{}, model.FilterSettings{}, model.Unbounded(), 0)
	if err != nil {
		a.logger.Warn("failed to count packages", zap.Error(err))
		return
	}
	a.metrics.SetPackages(len(pkgs))
}

// Stop gracefully stops all services and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}

	err := a.shutdown.Shutdown(ctx, "stop requested")

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	timeout := a.cfg.Registry.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-done:
	case <-time.After(timeout):
		a.logger.Warn("shutdown timeout, some servers may not have finished")
	}

	a.logger.Info("registry stopped")
	return err
}

// abort releases whatever a failed Start already acquired.
func (a *App) abort() {
	a.shutdown.Shutdown(context.Background(), "start failed")
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// WaitForShutdown blocks until a shutdown signal is received or ctx is done,
// then stops the registry.
func (a *App) WaitForShutdown(ctx context.Context) error {
	if err := a.shutdown.ListenForSignals(ctx); err != nil {
		a.logger.Warn("shutdown finished with errors", zap.Error(err))
	}
	return a.Stop(context.Background())
}

// Source returns the metadata source being served.
func (a *App) Source() storage.MetadataSource {
	return a.source
}

// Metrics returns the registry's metrics.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// GRPCAddr returns the address the gRPC server listens on.
func (a *App) GRPCAddr() net.Addr {
	if a.grpcListener == nil {
		return nil
	}
	return a.grpcListener.Addr()
}

// HTTPAddr returns the address the HTTP API listens on, or nil when disabled.
func (a *App) HTTPAddr() net.Addr {
	if a.httpListener == nil {
		return nil
	}
	return a.httpListener.Addr()
}

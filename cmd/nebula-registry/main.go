// Package main implements the nebula registry server. It serves a package
// metadata source over gRPC and HTTP and can mirror an upstream registry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/blackportal-ai/nebula/internal/app"
	"github.com/blackportal-ai/nebula/internal/config"
	"github.com/blackportal-ai/nebula/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		root        string
		backend     string
		grpcAddr    string
		httpAddr    string
		upstream    string
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML, JSON or TOML)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&root, "root", "", "Directory served by the rootfolder backend")
	flag.StringVar(&backend, "backend", "", "Metadata backend: rootfolder, sqlite, object")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	flag.StringVar(&upstream, "upstream", "", "host:port of a registry to mirror")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "nebula-registry - dataset package registry\n\n")
		fmt.Fprintf(os.Stderr, "Usage: nebula-registry [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  nebula-registry --root /srv/datasets\n")
		fmt.Fprintf(os.Stderr, "  nebula-registry --backend sqlite --upstream registry.example.org:50051\n")
		fmt.Fprintf(os.Stderr, "  nebula-registry --config /etc/nebula/registry.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  NEBULA_DATA                  Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  NEBULA_REGISTRY_GRPC_ADDR    gRPC listen address\n")
		fmt.Fprintf(os.Stderr, "  NEBULA_REGISTRY_HTTP_ADDR    HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  NEBULA_SYNC_UPSTREAM         Registry to mirror\n")
		fmt.Fprintf(os.Stderr, "  NEBULA_STORAGE_TYPE          Object storage type (local, s3)\n")
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("nebula-registry version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir, root, backend, grpcAddr, httpAddr, upstream)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting nebula-registry",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("data_dir", cfg.DataDir),
		zap.String("backend", string(cfg.Registry.Backend)),
		zap.String("grpc_addr", cfg.Registry.GRPCAddr),
		zap.String("http_addr", cfg.Registry.HTTPAddr),
		zap.String("upstream", cfg.Sync.Upstream),
	)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create application", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		logger.Fatal("failed to start application", zap.Error(err))
	}

	// Blocks until SIGINT or SIGTERM, then stops gracefully
	if err := application.WaitForShutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, root, backend, grpcAddr, httpAddr, upstream string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	// Command line flags have the highest priority
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if root != "" {
		cfg.Registry.Root = root
	}
	if backend != "" {
		cfg.Registry.Backend = config.Backend(backend)
	}
	if grpcAddr != "" {
		cfg.Registry.GRPCAddr = grpcAddr
	}
	if httpAddr != "" {
		cfg.Registry.HTTPAddr = httpAddr
	}
	if upstream != "" {
		cfg.Sync.Upstream = upstream
	}

	cfg.Resolve()
	return cfg, cfg.Validate()
}

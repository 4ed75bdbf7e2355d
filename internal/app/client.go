package app

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/blackportal-ai/nebula/internal/config"
	"github.com/blackportal-ai/nebula/internal/query"
	"github.com/blackportal-ai/nebula/internal/remote"
	"github.com/blackportal-ai/nebula/internal/storage"
	"github.com/blackportal-ai/nebula/internal/syncer"
)

// ClientState owns everything a CLI invocation needs: the resolved
// directories, the local package cache and the remote registry client.
// The cache and the client are created on first use.
type ClientState struct {
	cfg    *config.Config
	logger *zap.Logger

	mu     sync.Mutex
	local  *storage.RootFolderSource
	remote *remote.Client
	query  *query.Service
}

// NewClientState resolves cfg and creates its directories.
func NewClientState(cfg *config.Config, logger *zap.Logger) (*ClientState, error) {
	cfg.Resolve()
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientState{cfg: cfg, logger: logger}, nil
}

// Config returns the resolved configuration.
func (s *ClientState) Config() *config.Config {
	return s.cfg
}

// DataDir returns the data directory.
func (s *ClientState) DataDir() string {
	return s.cfg.DataDir
}

// ConfigDir returns the configuration directory.
func (s *ClientState) ConfigDir() string {
	return s.cfg.ConfigDir
}

// Local returns the cache rooted at <data>/local-registry, scanning it on
// first use.
func (s *ClientState) Local() (*storage.RootFolderSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localLocked()
}

func (s *ClientState) localLocked() (*storage.RootFolderSource, error) {
	if s.local != nil {
		return s.local, nil
	}
	src, err := storage.NewRootFolderSource(s.cfg.LocalRegistryPath(), s.logger.Named("cache"))
	if err != nil {
		return nil, err
	}
	s.local = src
	return src, nil
}

// Remote returns the client for the configured registry. The connection is
// made on the first call, so this never touches the network.
func (s *ClientState) Remote() (*remote.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteLocked()
}

func (s *ClientState) remoteLocked() (*remote.Client, error) {
	if s.remote != nil {
		return s.remote, nil
	}
	c, err := remote.Dial(s.cfg.RemoteAddr(), remote.Options{
		Timeout: s.cfg.Remote.Timeout,
		Logger:  s.logger.Named("remote"),
	})
	if err != nil {
		return nil, err
	}
	s.remote = c
	return c, nil
}

// Query returns the query service over the cache and the remote registry.
func (s *ClientState) Query() (*query.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.query != nil {
		return s.query, nil
	}
	local, err := s.localLocked()
	if err != nil {
		return nil, err
	}
	rc, err := s.remoteLocked()
	if err != nil {
		return nil, err
	}
	s.query = query.NewService(local, rc, s.logger.Named("query"))
	return s.query, nil
}

// Syncer returns an engine that copies the remote registry into the cache.
func (s *ClientState) Syncer() (*syncer.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	local, err := s.localLocked()
	if err != nil {
		return nil, err
	}
	rc, err := s.remoteLocked()
	if err != nil {
		return nil, err
	}
	return syncer.NewEngine(rc, local, syncer.Options{
		PageSize:  s.cfg.Sync.PageSize,
		RateLimit: s.cfg.Sync.RateLimit,
		Logger:    s.logger.Named("sync"),
	}), nil
}

// Close releases the remote connection if one was made.
func (s *ClientState) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remote == nil {
		return nil
	}
	err := s.remote.Close()
	s.remote = nil
	s.query = nil
	return err
}

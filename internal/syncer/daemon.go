package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DaemonConfig holds configuration for the mirror daemon.
type DaemonConfig struct {
	// Interval is the time between successful runs (default: 15m).
	Interval time.Duration

	// MaxBackoff caps the wait after consecutive failed runs (default: 8 * Interval).
	MaxBackoff time.Duration

	// Args are passed to every run.
	Args Args

	// OnReport is called after every run with its report and error.
	OnReport func(*Report, error)
}

// DefaultDaemonConfig returns the default daemon configuration.
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		Interval: 15 * time.Minute,
	}
}

// Daemon runs an Engine periodically until stopped.
type Daemon struct {
	config  DaemonConfig
	engine  *Engine
	backoff *Backoff
	logger  *zap.Logger

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	lastReport *Report
	lastErr    error
}

// NewDaemon creates a mirror daemon driving engine.
func NewDaemon(config DaemonConfig, engine *Engine, logger *zap.Logger) *Daemon {
	if config.Interval <= 0 {
		config.Interval = DefaultDaemonConfig().Interval
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 8 * config.Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Daemon{
		config:  config,
		engine:  engine,
		backoff: NewBackoff(config.Interval, config.MaxBackoff),
		logger:  logger,
	}
}

// Start begins the sync loop. It runs until the context is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("syncer: daemon is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.done = make(chan struct{})
	d.mu.Unlock()

	go d.run(ctx)
	return nil
}

// Stop stops the loop and waits for the current run to finish.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	cancel()
	<-done

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	return nil
}

// Close implements io.Closer so the daemon can be registered for shutdown.
func (d *Daemon) Close() error {
	return d.Stop()
}

// LastReport returns the result of the most recent run.
func (d *Daemon) LastReport() (*Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastReport, d.lastErr
}

func (d *Daemon) run(ctx context.Context) {
	defer close(d.done)

	// Run immediately on start
	wait := d.RunOnce(ctx)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			timer.Reset(d.RunOnce(ctx))
		}
	}
}

// RunOnce performs a single sync run and returns the wait before the next.
func (d *Daemon) RunOnce(ctx context.Context) time.Duration {
	if ctx.Err() != nil {
		return d.config.Interval
	}

	report, err := d.engine.Sync(ctx, d.config.Args)

	d.mu.Lock()
	d.lastReport, d.lastErr = report, err
	d.mu.Unlock()

	if d.config.OnReport != nil {
		d.config.OnReport(report, err)
	}

	if err != nil && ctx.Err() == nil {
		wait := d.backoff.Failure()
		d.logger.Warn("sync run failed, backing off", zap.Duration("retry_in", wait), zap.Error(err))
		return wait
	}
	return d.backoff.Success()
}

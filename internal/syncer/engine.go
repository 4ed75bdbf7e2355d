// Package syncer mirrors a remote registry into a local metadata source.
package syncer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/blackportal-ai/nebula/api/proto"
	nebulaerrors "github.com/blackportal-ai/nebula/internal/errors"
	"github.com/blackportal-ai/nebula/internal/metrics"
	"github.com/blackportal-ai/nebula/internal/model"
	"github.com/blackportal-ai/nebula/internal/remote"
	"github.com/blackportal-ai/nebula/internal/storage"
	"github.com/blackportal-ai/nebula/pkg/datapackage"
)

// DefaultPageSize is the number of remote summaries requested per page.
const DefaultPageSize = 100

// Options configures an Engine.
type Options struct {
	// PageSize is the list page size (default: 100).
	PageSize int

	// RateLimit caps list requests per second; zero means unlimited.
	RateLimit float64

	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Args are the arguments of one sync run.
type Args struct {
	// LastSync is forwarded to the registry. Every run still walks the
	// complete catalog.
	LastSync *int64

	PackageType model.PackageType
}

// Failure records a remote item that could not be stored.
type Failure struct {
	Name    string
	Version string
	Err     error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s@%s: %v", f.Name, f.Version, f.Err)
}

// Report summarises one sync run.
type Report struct {
	// Fetched is the number of summaries received from the registry.
	Fetched int
	Synced  int
	Skipped int

	Failures []Failure
	Duration time.Duration
}

// Engine copies every descriptor of a remote registry into a target source.
type Engine struct {
	remote   remote.Registry
	target   storage.MetadataSource
	limiter  *rate.Limiter
	pageSize int
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewEngine creates a sync engine writing into target.
func NewEngine(registry remote.Registry, target storage.MetadataSource, opts Options) *Engine {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Engine{
		remote:   registry,
		target:   target,
		limiter:  limiter,
		pageSize: opts.PageSize,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

// Sync pages through the remote catalog and stores every valid descriptor.
// Items that carry no descriptor, fail to validate, or fail to store are
// recorded in the report and skipped. An error is returned only when a
// list request fails or ctx is done; the report then covers the items
// processed so far.
func (e *Engine) Sync(ctx context.Context, args Args) (*Report, error) {
	start := time.Now()
	report := &Report{}

	err := e.sync(ctx, args, report)

	report.Duration = time.Since(start)
	report.Skipped = len(report.Failures)
	e.metrics.ObserveSync(err, report.Synced, report.Skipped, report.Duration)

	if err != nil {
		e.logger.Error("sync failed",
			zap.Int("synced", report.Synced),
			zap.Int("skipped", report.Skipped),
			zap.Error(err),
		)
		return report, err
	}

	e.logger.Info("sync complete",
		zap.Int("fetched", report.Fetched),
		zap.Int("synced", report.Synced),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (e *Engine) sync(ctx context.Context, args Args, report *Report) error {
	offset := 0
	for {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		list, err := e.remote.ListPackages(ctx, &proto.ListPackagesRequest{
			LastSync:     args.LastSync,
			PackageType:  args.PackageType,
			Limit:        proto.Int32(int32(e.pageSize)),
			Offset:       proto.Int32(int32(offset)),
			FieldOptions: &proto.FieldOptions{IncludeDatapackageJson: true},
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nebulaerrors.NewSyncError(nebulaerrors.CodeListFailed,
				fmt.Sprintf("failed to list remote packages at offset %d", offset), err)
		}

		for _, info := range list.Packages {
			if err := ctx.Err(); err != nil {
				return err
			}
			report.Fetched++
			e.syncItem(ctx, info, report)
		}

		offset += len(list.Packages)
		if len(list.Packages) < e.pageSize || (list.TotalCount > 0 && offset >= int(list.TotalCount)) {
			return nil
		}
	}
}

func (e *Engine) syncItem(ctx context.Context, info *proto.PackageInfo, report *Report) {
	pkg, err := datapackage.FromRawJSON(info.DatapackageJson)
	if err == nil {
		err = e.target.Put(ctx, pkg)
	}
	if err != nil {
		e.logger.Warn("skipping remote package",
			zap.String("name", info.Name),
			zap.String("version", info.Version),
			zap.Error(err),
		)
		report.Failures = append(report.Failures, Failure{Name: info.Name, Version: info.Version, Err: err})
		return
	}

	report.Synced++
	e.logger.Debug("synced package",
		zap.String("name", pkg.Name()),
		zap.String("version", pkg.Version()),
	)
}

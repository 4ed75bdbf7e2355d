// Package remote is the client side of the registry protocol.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/blackportal-ai/nebula/api/proto"
	nebulaerrors "github.com/blackportal-ai/nebula/internal/errors"
)

// Registry is a remote package registry.
type Registry interface {
	// GetPackageInfo returns nil, nil when the registry has no match.
	GetPackageInfo(ctx context.Context, req *proto.PackageRequest) (*proto.PackageInfo, error)
	ListPackages(ctx context.Context, req *proto.ListPackagesRequest) (*proto.PackageList, error)
	SearchPackages(ctx context.Context, req *proto.SearchPackagesRequest) (*proto.PackageList, error)
}

// Options configures a Client.
type Options struct {
	// Timeout bounds every call; zero means no per-call deadline.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client talks to a registry over gRPC. Transport failures come back as
// REMOTE errors from internal/errors.
type Client struct {
	conn    *grpc.ClientConn
	client  proto.NebulaPackageQueryClient
	addr    string
	timeout time.Duration
	logger  *zap.Logger
}

// Dial creates a client for the registry at addr. The connection is
// established lazily on the first call.
func Dial(addr string, opts Options) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                60 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: false,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(16*1024*1024), // whole catalog pages with raw descriptors
		),
	}

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, nebulaerrors.NewRemoteError(nebulaerrors.CodeUnavailable, fmt.Sprintf("failed to create client for %s", addr), err)
	}

	c := NewWithConn(conn, opts)
	c.conn = conn
	c.addr = addr
	return c, nil
}

// NewWithConn wraps an existing connection. Close does not close cc.
func NewWithConn(cc grpc.ClientConnInterface, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:  proto.NewNebulaPackageQueryClient(cc),
		timeout: opts.Timeout,
		logger:  logger,
	}
}

// Addr returns the address passed to Dial.
func (c *Client) Addr() string {
	return c.addr
}

// Close closes the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// GetPackageInfo fetches the first package whose name contains the query.
func (c *Client) GetPackageInfo(ctx context.Context, req *proto.PackageRequest) (*proto.PackageInfo, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	info, err := c.client.GetPackageInfo(ctx, req)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, c.wrap("GetPackageInfo", err)
	}
	return info, nil
}

// ListPackages fetches one page of the catalog.
func (c *Client) ListPackages(ctx context.Context, req *proto.ListPackagesRequest) (*proto.PackageList, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	list, err := c.client.ListPackages(ctx, req)
	if err != nil {
		return nil, c.wrap("ListPackages", err)
	}
	return list, nil
}

// SearchPackages runs a free-text query on the registry.
func (c *Client) SearchPackages(ctx context.Context, req *proto.SearchPackagesRequest) (*proto.PackageList, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	list, err := c.client.SearchPackages(ctx, req)
	if err != nil {
		return nil, c.wrap("SearchPackages", err)
	}
	return list, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) wrap(method string, err error) error {
	c.logger.Debug("registry call failed", zap.String("method", method), zap.Error(err))
	return FromStatus(method, err)
}

// FromStatus maps a gRPC error onto the nebula error taxonomy.
func FromStatus(method string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	msg := method + " failed"
	switch status.Code(err) {
	case codes.Unavailable:
		return nebulaerrors.NewRemoteError(nebulaerrors.CodeUnavailable, msg, err)
	case codes.DeadlineExceeded:
		return nebulaerrors.NewRemoteError(nebulaerrors.CodeTimeout, msg, err)
	case codes.NotFound:
		return nebulaerrors.NewRemoteError(nebulaerrors.CodeNotFound, msg, err)
	case codes.Unimplemented:
		return nebulaerrors.Wrap(nebulaerrors.ErrCategoryQuery, nebulaerrors.CodeUnimplemented, msg, err)
	case codes.InvalidArgument:
		return nebulaerrors.Wrap(nebulaerrors.ErrCategoryQuery, nebulaerrors.CodeInvalidArgument, msg, err)
	case codes.Canceled:
		return context.Canceled
	default:
		return nebulaerrors.NewRemoteError(nebulaerrors.CodeBadResponse, msg, err)
	}
}

var _ Registry = (*Client)(nil)

// Package mcp exposes the package query service to tool-calling clients
// over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/blackportal-ai/nebula/internal/query"
)

// Transport names accepted by Serve.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// New creates an MCP server with the package tools registered.
func New(svc *query.Service, version string, logger *zap.Logger) *mcp.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "nebula",
		Version: version,
	}, nil)

	t := &Tools{Query: svc, logger: logger}

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_packages",
		Description: "List dataset packages in the local cache or the remote registry, one page at a time.",
	}, t.ListPackages)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_packages",
		Description: "Free-text search over package names, titles, descriptions and keywords.",
	}, t.SearchPackages)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "package_info",
		Description: "Show the full descriptor of the first package whose name contains the given text.",
	}, t.PackageInfo)

	return srv
}

// Serve runs srv on the named transport until ctx is done. addr is only
// used by the http transport.
func Serve(ctx context.Context, srv *mcp.Server, transport, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch transport {
	case TransportStdio, "":
		logger.Info("mcp server starting", zap.String("transport", TransportStdio))
		return srv.Run(ctx, &mcp.StdioTransport{})

	case TransportHTTP:
		handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return srv
		}, nil)
		httpSrv := &http.Server{Addr: addr, Handler: handler}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("mcp server listening", zap.String("transport", TransportHTTP), zap.String("addr", addr))
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}

	default:
		return fmt.Errorf("unknown transport %q (use stdio or http)", transport)
	}
}

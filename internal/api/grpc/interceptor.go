package grpc

import (
	"context"
	"path"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/blackportal-ai/nebula/internal/metrics"
)

// UnaryServerInterceptor logs every call and records it in m. m may be nil.
func UnaryServerInterceptor(m *metrics.Metrics, logger *zap.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)

		method := path.Base(info.FullMethod)
		code := status.Code(err)
		m.ObserveRequest("grpc", method, code.String(), elapsed)

		logger.Debug("grpc request",
			zap.String("method", method),
			zap.String("code", code.String()),
			zap.Duration("duration", elapsed),
		)
		return resp, err
	}
}

// Package grpc serves a metadata source over the nebula package query service.
package grpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/blackportal-ai/nebula/api/proto"
	nebulaerrors "github.com/blackportal-ai/nebula/internal/errors"
	"github.com/blackportal-ai/nebula/internal/model"
	"github.com/blackportal-ai/nebula/internal/storage"
	"github.com/blackportal-ai/nebula/pkg/datapackage"
)

// RegistryServer implements the NebulaPackageQuery gRPC server.
type RegistryServer struct {
	proto.UnimplementedNebulaPackageQueryServer
	source storage.MetadataSource
	logger *zap.Logger
}

// NewRegistryServer creates a registry server answering from source.
func NewRegistryServer(source storage.MetadataSource, logger *zap.Logger) *RegistryServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryServer{
		source: source,
		logger: logger,
	}
}

// GetPackageInfo returns the first package whose name contains the query.
func (s *RegistryServer) GetPackageInfo(ctx context.Context, req *proto.PackageRequest) (*proto.PackageInfo, error) {
	requestID := extractRequestID(ctx)

	if req.GetSearchQuery() == "" {
		return nil, status.Error(codes.InvalidArgument, "search_query is required")
	}

	pkg, err := s.source.Get(ctx, req.GetSearchQuery(), model.FilterFromPackageRequest(req))
	if err != nil {
		s.logger.Warn("get package failed", zap.String("request_id", requestID), zap.Error(err))
		return nil, toStatus(err)
	}
	if pkg == nil {
		return nil, status.Errorf(codes.NotFound, "no package matches %q", req.GetSearchQuery())
	}

	info, err := model.InfoFromPackage(pkg, model.FieldsFromOptions(req.FieldOptions))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode package: %v", err)
	}
	return info, nil
}

// ListPackages returns one page of the catalog.
func (s *RegistryServer) ListPackages(ctx context.Context, req *proto.ListPackagesRequest) (*proto.PackageList, error) {
	requestID := extractRequestID(ctx)
	sort, filter, page, fields := model.ListSettingsFromRequest(req)

	pkgs, err := s.source.List(ctx, sort, filter, page, fields)
	if err != nil {
		s.logger.Warn("list packages failed", zap.String("request_id", requestID), zap.Error(err))
		return nil, toStatus(err)
	}
	return s.page(pkgs, sort, filter, page, fields)
}

// SearchPackages runs a free-text query against the source.
func (s *RegistryServer) SearchPackages(ctx context.Context, req *proto.SearchPackagesRequest) (*proto.PackageList, error) {
	requestID := extractRequestID(ctx)
	sort, filter, page, fields := model.SearchSettingsFromRequest(req)

	if req.SearchQuery == "" {
		return nil, status.Error(codes.InvalidArgument, "search_query is required")
	}

	pkgs, err := s.source.Search(ctx, req.SearchQuery, sort, filter, page)
	if err != nil {
		s.logger.Warn("search packages failed",
			zap.String("request_id", requestID),
			zap.String("query", req.SearchQuery),
			zap.Error(err),
		)
		return nil, toStatus(err)
	}
	return s.page(pkgs, sort, filter, page, fields)
}

// page applies the request settings and builds the response. TotalCount is
// the number of matches before pagination.
func (s *RegistryServer) page(pkgs []*datapackage.Package, sort model.SortSettings, filter model.FilterSettings, page model.PaginationSettings, fields model.FieldSettings) (*proto.PackageList, error) {
	matched := model.ApplyFilter(pkgs, filter)
	model.ApplySort(matched, sort)
	window := model.ApplyPagination(matched, page)

	infos, err := model.InfosFromPackages(window, fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode packages: %v", err)
	}

	return &proto.PackageList{
		Packages:   infos,
		TotalCount: int32(len(matched)),
		Limit:      proto.Int32(int32(page.Limit)),
		Offset:     proto.Int32(int32(page.Offset)),
	}, nil
}

// toStatus maps an error onto a gRPC status.
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	switch nebulaerrors.GetCategory(err) {
	case nebulaerrors.ErrCategoryQuery:
		if nebulaerrors.GetCode(err) == nebulaerrors.CodeUnimplemented {
			return status.Error(codes.Unimplemented, err.Error())
		}
		return status.Error(codes.InvalidArgument, err.Error())
	case nebulaerrors.ErrCategoryValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case nebulaerrors.ErrCategoryRemote:
		return status.Error(codes.Unavailable, err.Error())
	case nebulaerrors.ErrCategoryStorage:
		if nebulaerrors.GetCode(err) == nebulaerrors.CodeReadOnly {
			return status.Error(codes.FailedPrecondition, err.Error())
		}
		return status.Error(codes.Internal, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// extractRequestID extracts or generates a request ID from the gRPC context.
func extractRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 {
			return ids[0]
		}
	}
	return uuid.New().String()
}

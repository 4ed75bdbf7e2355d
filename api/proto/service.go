package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "nebula.v1.NebulaPackageQuery"

const (
	methodGetPackageInfo = "/" + ServiceName + "/GetPackageInfo"
	methodListPackages   = "/" + ServiceName + "/ListPackages"
	methodSearchPackages = "/" + ServiceName + "/SearchPackages"
)

// NebulaPackageQueryClient is the client API for the package query service.
type NebulaPackageQueryClient interface {
	GetPackageInfo(ctx context.Context, in *PackageRequest, opts ...grpc.CallOption) (*PackageInfo, error)
	ListPackages(ctx context.Context, in *ListPackagesRequest, opts ...grpc.CallOption) (*PackageList, error)
	SearchPackages(ctx context.Context, in *SearchPackagesRequest, opts ...grpc.CallOption) (*PackageList, error)
}

type nebulaPackageQueryClient struct {
	cc grpc.ClientConnInterface
}

// NewNebulaPackageQueryClient wraps a connection.
func NewNebulaPackageQueryClient(cc grpc.ClientConnInterface) NebulaPackageQueryClient {
	return &nebulaPackageQueryClient{cc: cc}
}

func (c *nebulaPackageQueryClient) GetPackageInfo(ctx context.Context, in *PackageRequest, opts ...grpc.CallOption) (*PackageInfo, error) {
	out := new(PackageInfo)
	if err := c.cc.Invoke(ctx, methodGetPackageInfo, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *nebulaPackageQueryClient) ListPackages(ctx context.Context, in *ListPackagesRequest, opts ...grpc.CallOption) (*PackageList, error) {
	out := new(PackageList)
	if err := c.cc.Invoke(ctx, methodListPackages, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *nebulaPackageQueryClient) SearchPackages(ctx context.Context, in *SearchPackagesRequest, opts ...grpc.CallOption) (*PackageList, error) {
	out := new(PackageList)
	if err := c.cc.Invoke(ctx, methodSearchPackages, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// NebulaPackageQueryServer is the server API for the package query service.
type NebulaPackageQueryServer interface {
	GetPackageInfo(context.Context, *PackageRequest) (*PackageInfo, error)
	ListPackages(context.Context, *ListPackagesRequest) (*PackageList, error)
	SearchPackages(context.Context, *SearchPackagesRequest) (*PackageList, error)
}

// UnimplementedNebulaPackageQueryServer answers every method with Unimplemented.
// Embed it to stay forward compatible.
type UnimplementedNebulaPackageQueryServer struct{}

func (UnimplementedNebulaPackageQueryServer) GetPackageInfo(context.Context, *PackageRequest) (*PackageInfo, error) {
	return nil, status.Error(codes.Unimplemented, "method GetPackageInfo not implemented")
}

func (UnimplementedNebulaPackageQueryServer) ListPackages(context.Context, *ListPackagesRequest) (*PackageList, error) {
	return nil, status.Error(codes.Unimplemented, "method ListPackages not implemented")
}

func (UnimplementedNebulaPackageQueryServer) SearchPackages(context.Context, *SearchPackagesRequest) (*PackageList, error) {
	return nil, status.Error(codes.Unimplemented, "method SearchPackages not implemented")
}

// RegisterNebulaPackageQueryServer registers srv with s.
func RegisterNebulaPackageQueryServer(s grpc.ServiceRegistrar, srv NebulaPackageQueryServer) {
	s.RegisterService(&NebulaPackageQueryServiceDesc, srv)
}

func getPackageInfoHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PackageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NebulaPackageQueryServer).GetPackageInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetPackageInfo}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NebulaPackageQueryServer).GetPackageInfo(ctx, req.(*PackageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listPackagesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListPackagesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NebulaPackageQueryServer).ListPackages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListPackages}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NebulaPackageQueryServer).ListPackages(ctx, req.(*ListPackagesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func searchPackagesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SearchPackagesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NebulaPackageQueryServer).SearchPackages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSearchPackages}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NebulaPackageQueryServer).SearchPackages(ctx, req.(*SearchPackagesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// NebulaPackageQueryServiceDesc describes the package query service.
var NebulaPackageQueryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NebulaPackageQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetPackageInfo", Handler: getPackageInfoHandler},
		{MethodName: "ListPackages", Handler: listPackagesHandler},
		{MethodName: "SearchPackages", Handler: searchPackagesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nebula.proto",
}

package apiv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "silhouette.dokvs.v1.DokvsService"

const (
	DokvsService_Publish_FullMethodName    = "/" + ServiceName + "/Publish"
	DokvsService_Fetch_FullMethodName      = "/" + ServiceName + "/Fetch"
	DokvsService_Lookup_FullMethodName     = "/" + ServiceName + "/Lookup"
	DokvsService_Delete_FullMethodName     = "/" + ServiceName + "/Delete"
	DokvsService_ListTables_FullMethodName = "/" + ServiceName + "/ListTables"
	DokvsService_Join_FullMethodName       = "/" + ServiceName + "/Join"
)

// DokvsServiceServer is the server API for DokvsService.
type DokvsServiceServer interface {
	// Publish encodes pairs into a table and replicates it.
	Publish(context.Context, *PublishRequest) (*PublishResponse, error)
	// Fetch returns a table's encoded blob.
	Fetch(context.Context, *FetchRequest) (*FetchResponse, error)
	// Lookup decodes keys on the server.
	Lookup(context.Context, *LookupRequest) (*LookupResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
	ListTables(context.Context, *ListTablesRequest) (*ListTablesResponse, error)
	// Join adds a raft voter; only the leader accepts it.
	Join(context.Context, *JoinRequest) (*JoinResponse, error)
}

// UnimplementedDokvsServiceServer can be embedded to have forward
// compatible implementations.
type UnimplementedDokvsServiceServer struct{}

func (UnimplementedDokvsServiceServer) Publish(context.Context, *PublishRequest) (*PublishResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Publish not implemented")
}
func (UnimplementedDokvsServiceServer) Fetch(context.Context, *FetchRequest) (*FetchResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Fetch not implemented")
}
func (UnimplementedDokvsServiceServer) Lookup(context.Context, *LookupRequest) (*LookupResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Lookup not implemented")
}
func (UnimplementedDokvsServiceServer) Delete(context.Context, *DeleteRequest) (*DeleteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Delete not implemented")
}
func (UnimplementedDokvsServiceServer) ListTables(context.Context, *ListTablesRequest) (*ListTablesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListTables not implemented")
}
func (UnimplementedDokvsServiceServer) Join(context.Context, *JoinRequest) (*JoinResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Join not implemented")
}

// RegisterDokvsServiceServer registers srv on s.
func RegisterDokvsServiceServer(s grpc.ServiceRegistrar, srv DokvsServiceServer) {
	s.RegisterService(&DokvsService_ServiceDesc, srv)
}

// unaryHandler adapts a typed server method to a grpc.MethodHandler.
func unaryHandler[Req, Resp any](fullMethod string, call func(DokvsServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DokvsServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DokvsServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// DokvsService_ServiceDesc is the grpc.ServiceDesc for DokvsService.
var DokvsService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DokvsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: unaryHandler(DokvsService_Publish_FullMethodName, DokvsServiceServer.Publish)},
		{MethodName: "Fetch", Handler: unaryHandler(DokvsService_Fetch_FullMethodName, DokvsServiceServer.Fetch)},
		{MethodName: "Lookup", Handler: unaryHandler(DokvsService_Lookup_FullMethodName, DokvsServiceServer.Lookup)},
		{MethodName: "Delete", Handler: unaryHandler(DokvsService_Delete_FullMethodName, DokvsServiceServer.Delete)},
		{MethodName: "ListTables", Handler: unaryHandler(DokvsService_ListTables_FullMethodName, DokvsServiceServer.ListTables)},
		{MethodName: "Join", Handler: unaryHandler(DokvsService_Join_FullMethodName, DokvsServiceServer.Join)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "silhouette/dokvs/v1/dokvs.cbor",
}

// DokvsServiceClient is the client API for DokvsService.
type DokvsServiceClient interface {
	Publish(ctx context.Context, in *PublishRequest, opts ...grpc.CallOption) (*PublishResponse, error)
	Fetch(ctx context.Context, in *FetchRequest, opts ...grpc.CallOption) (*FetchResponse, error)
	Lookup(ctx context.Context, in *LookupRequest, opts ...grpc.CallOption) (*LookupResponse, error)
	Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error)
	ListTables(ctx context.Context, in *ListTablesRequest, opts ...grpc.CallOption) (*ListTablesResponse, error)
	Join(ctx context.Context, in *JoinRequest, opts ...grpc.CallOption) (*JoinResponse, error)
}

type dokvsServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewDokvsServiceClient returns a client whose calls use the CBOR codec.
func NewDokvsServiceClient(cc grpc.ClientConnInterface) DokvsServiceClient {
	return &dokvsServiceClient{cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *dokvsServiceClient) Publish(ctx context.Context, in *PublishRequest, opts ...grpc.CallOption) (*PublishResponse, error) {
	return invoke[PublishResponse](ctx, c.cc, DokvsService_Publish_FullMethodName, in, opts)
}

func (c *dokvsServiceClient) Fetch(ctx context.Context, in *FetchRequest, opts ...grpc.CallOption) (*FetchResponse, error) {
	return invoke[FetchResponse](ctx, c.cc, DokvsService_Fetch_FullMethodName, in, opts)
}

func (c *dokvsServiceClient) Lookup(ctx context.Context, in *LookupRequest, opts ...grpc.CallOption) (*LookupResponse, error) {
	return invoke[LookupResponse](ctx, c.cc, DokvsService_Lookup_FullMethodName, in, opts)
}

func (c *dokvsServiceClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	return invoke[DeleteResponse](ctx, c.cc, DokvsService_Delete_FullMethodName, in, opts)
}

func (c *dokvsServiceClient) ListTables(ctx context.Context, in *ListTablesRequest, opts ...grpc.CallOption) (*ListTablesResponse, error) {
	return invoke[ListTablesResponse](ctx, c.cc, DokvsService_ListTables_FullMethodName, in, opts)
}

func (c *dokvsServiceClient) Join(ctx context.Context, in *JoinRequest, opts ...grpc.CallOption) (*JoinResponse, error) {
	return invoke[JoinResponse](ctx, c.cc, DokvsService_Join_FullMethodName, in, opts)
}

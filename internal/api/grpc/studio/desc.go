package studio

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "studio.v1.StudioService"

// Method names.
const (
	MethodCommitTimer     = "CommitTimer"
	MethodGetTimer        = "GetTimer"
	MethodCommitSignal    = "CommitSignal"
	MethodGetSignal       = "GetSignal"
	MethodApplyCallEvent  = "ApplyCallEvent"
	MethodListLines       = "ListLines"
	MethodSaveToPhoneBook = "SaveToPhoneBook"
)

// FullMethod returns the invoke path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// studioServer is the handler type checked by grpc.RegisterService.
type studioServer interface {
	CommitTimer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTimer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CommitSignal(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSignal(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyCallEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListLines(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveToPhoneBook(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(studioServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*studioServer)(nil),
	Methods: []grpc.MethodDesc{
		method(MethodCommitTimer, studioServer.CommitTimer),
		method(MethodGetTimer, studioServer.GetTimer),
		method(MethodCommitSignal, studioServer.CommitSignal),
		method(MethodGetSignal, studioServer.GetSignal),
		method(MethodApplyCallEvent, studioServer.ApplyCallEvent),
		method(MethodListLines, studioServer.ListLines),
		method(MethodSaveToPhoneBook, studioServer.SaveToPhoneBook),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "studio/v1/studio.proto",
}

func method(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}

			server, _ := srv.(studioServer) //nolint:errcheck // RegisterService checked the type.
			if interceptor == nil {
				return call(server, ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}

			handler := func(ctx context.Context, req any) (any, error) {
				request, _ := req.(*structpb.Struct) //nolint:errcheck // Decoded above.
				return call(server, ctx, request)
			}

			return interceptor(ctx, in, info, handler)
		},
	}
}

// Register installs srv on registrar.
func Register(registrar grpc.ServiceRegistrar, srv *Server) {
	registrar.RegisterService(&serviceDesc, srv)
}

// Client is the low-level stub of the service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a stub invoking methods over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Invoke calls method with in and returns the decoded response.
func (c *Client) Invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

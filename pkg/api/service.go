package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControllerServer is the typed surface the gRPC service desc below dispatches
// to. Every method still speaks structpb.Struct at the wire boundary; Server
// (in server.go) is the concrete implementation backed by controller.Service.
type ControllerServer interface {
	Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetInstance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// getInstanceRequest is the one request shape that is not a bare
// DesiredState/CurrentState: GetInstance takes a single instance id.
type getInstanceRequest struct {
	InstanceID string `json:"instance_id"`
}

func reconcileHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControllerServer).Reconcile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/transctrl.Controller/Reconcile"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControllerServer).Reconcile(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControllerServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/transctrl.Controller/GetStatus"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControllerServer).GetStatus(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getInstanceHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControllerServer).GetInstance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/transctrl.Controller/GetInstance"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControllerServer).GetInstance(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// serviceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit from a controller.proto. structpb.Struct already satisfies
// proto.Message, so the standard grpc codec marshals it without any
// generated stub.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "transctrl.Controller",
	HandlerType: (*ControllerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Reconcile",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				return reconcileHandler(srv, ctx, dec, interceptor)
			},
		},
		{
			MethodName: "GetStatus",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				return getStatusHandler(srv, ctx, dec, interceptor)
			},
		},
		{
			MethodName: "GetInstance",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				return getInstanceHandler(srv, ctx, dec, interceptor)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "transctrl/controller.proto",
}

// RegisterControllerServer registers srv against the service desc above.
func RegisterControllerServer(s *grpc.Server, srv ControllerServer) {
	s.RegisterService(&serviceDesc, srv)
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/cuemby/transctrl/pkg/controller"
	"github.com/cuemby/transctrl/pkg/log"
	"github.com/cuemby/transctrl/pkg/types"
	"github.com/cuemby/transctrl/pkg/validator"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxConcurrentStreams bounds the number of RPCs the server services at
// once. The controller itself is not reentrant-sensitive (the runtime
// driver and rate limiter are the only shared state), but an unbounded
// stream count against a single Docker daemon invites thundering herds on
// the daemon's own API.
const maxConcurrentStreams = 10

// Server implements ControllerServer on top of a controller.Service and
// hosts it on a Unix domain socket.
type Server struct {
	svc  *controller.Service
	grpc *grpc.Server
}

// NewServer wires a gRPC server around svc. Rate limiting is not done here:
// controller.Service.Reconcile checks the limiter itself, and Reconcile below
// maps its ErrRateLimited to codes.ResourceExhausted.
func NewServer(svc *controller.Service) *Server {
	grpcServer := grpc.NewServer(
		grpc.MaxConcurrentStreams(maxConcurrentStreams),
		grpc.UnaryInterceptor(ErrorTranslationInterceptor()),
	)
	s := &Server{svc: svc, grpc: grpcServer}
	RegisterControllerServer(grpcServer, s)
	return s
}

// Serve removes any stale socket file at socketPath and blocks serving
// gRPC over it until the server is stopped.
func (s *Server) Serve(socketPath string) error {
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", socketPath, err)
	}

	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}

	log.WithComponent("api").Info().Str("socket", socketPath).Msg("gRPC server listening")
	return s.grpc.Serve(lis)
}

// Stop gracefully drains in-flight RPCs before returning.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

func (s *Server) Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var ds types.DesiredState
	if err := decode(req, &ds); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode DesiredState: %v", err)
	}

	result, err := s.svc.Reconcile(ctx, &ds)
	if err != nil {
		if errors.Is(err, controller.ErrRateLimited) {
			return nil, status.Error(codes.ResourceExhausted, err.Error())
		}
		return nil, status.Errorf(codes.Internal, "reconcile: %v", err)
	}

	return encode(result)
}

func (s *Server) GetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	state, err := s.svc.GetStatus(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "get status: %v", err)
	}
	return encode(state)
}

func (s *Server) GetInstance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in getInstanceRequest
	if err := decode(req, &in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	if in.InstanceID == "" {
		return nil, status.Error(codes.InvalidArgument, "instance_id is required")
	}

	instance, err := s.svc.GetInstance(ctx, in.InstanceID)
	if err != nil {
		if errors.Is(err, controller.ErrInstanceNotFound) {
			return nil, status.Errorf(codes.NotFound, "instance %s not found", in.InstanceID)
		}
		var verr *validator.Error
		if errors.As(err, &verr) {
			return nil, status.Error(codes.InvalidArgument, verr.Error())
		}
		return nil, status.Errorf(codes.Internal, "get instance: %v", err)
	}

	return encode(instance)
}

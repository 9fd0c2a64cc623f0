package simulator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cartridge/gather/internal/env"
)

const serviceName = "grasp.sim.v1.Simulator"

const (
	methodActionSpace = "/" + serviceName + "/ActionSpace"
	methodReset       = "/" + serviceName + "/Reset"
	methodStep        = "/" + serviceName + "/Step"
)

// Bounded is implemented by action spaces that can report their bounds.
type Bounded interface {
	Bounds() (low, high []float64)
}

// Factory builds the environment served for a set of reset options.
type Factory func(opts ResetOptions) (env.Environment, error)

// simulatorServer is the service implementation contract.
type simulatorServer interface {
	ActionSpace(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Step(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Server exposes one environment at a time; calls are serialized.
type Server struct {
	mu      sync.Mutex
	factory Factory
	env     env.Environment
	opts    ResetOptions
	logger  zerolog.Logger
}

// NewServer creates a simulator service backed by factory.
func NewServer(factory Factory, logger zerolog.Logger) *Server {
	return &Server{factory: factory, logger: logger}
}

// Register attaches the service to a gRPC server.
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

// Close releases the current environment.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeEnv()
}

func (s *Server) closeEnv() error {
	if c, ok := s.env.(env.Closer); ok {
		return c.Close()
	}
	return nil
}

// Reset rebuilds the environment when the options changed, then resets it.
func (s *Server) Reset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := resetOptionsFromStruct(req)
	if s.env == nil || opts != s.opts {
		if err := s.closeEnv(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close previous environment")
		}
		e, err := s.factory(opts)
		if err != nil {
			s.env = nil
			return nil, status.Errorf(codes.InvalidArgument, "failed to build environment: %v", err)
		}
		s.env = e
		s.opts = opts
		s.logger.Info().
			Int("max_steps", opts.MaxSteps).
			Bool("gui", opts.GUI).
			Int("width", opts.Width).
			Int("height", opts.Height).
			Msg("environment created")
	}

	state, err := s.env.Reset(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "reset failed: %v", err)
	}
	images, err := encodeState(state)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode state: %v", err)
	}
	resp, err := structpb.NewStruct(map[string]interface{}{"state": images})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode state: %v", err)
	}
	return resp, nil
}

// Step applies the requested action.
func (s *Server) Step(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.env == nil {
		return nil, status.Error(codes.FailedPrecondition, "reset before stepping")
	}
	action := env.Action(listToFloats(req.GetFields()["action"]))
	res, err := s.env.Step(ctx, action)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "step failed: %v", err)
	}
	resp, err := encodeStep(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode step: %v", err)
	}
	return resp, nil
}

// ActionSpace reports the bounds of the current environment's actions.
func (s *Server) ActionSpace(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.env == nil {
		return nil, status.Error(codes.FailedPrecondition, "reset before querying the action space")
	}
	bounded, ok := s.env.ActionSpace().(Bounded)
	if !ok {
		return nil, status.Error(codes.Unimplemented, "action space does not expose bounds")
	}
	low, high := bounded.Bounds()
	resp, err := structpb.NewStruct(map[string]interface{}{
		"low":  floatsToList(low),
		"high": floatsToList(high),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode action space: %v", err)
	}
	return resp, nil
}

// LoggingInterceptor logs every unary call with its duration.
func LoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		event := logger.Debug()
		if err != nil {
			event = logger.Warn().Err(err)
		}
		event.Str("method", info.FullMethod).
			Dur("duration", time.Since(start)).
			Msg("simulator call")
		return resp, err
	}
}

func unaryHandler(method string, call func(simulatorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(simulatorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(simulatorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*simulatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ActionSpace",
			Handler:    unaryHandler(methodActionSpace, simulatorServer.ActionSpace),
		},
		{
			MethodName: "Reset",
			Handler:    unaryHandler(methodReset, simulatorServer.Reset),
		},
		{
			MethodName: "Step",
			Handler:    unaryHandler(methodStep, simulatorServer.Step),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "grasp/sim/v1/simulator.proto",
}

package pose

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/lense/internal/capture"
	"github.com/banshee-data/lense/internal/monitoring"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name of the HandPose
// protocol.
const ServiceName = "lense.pose.v1.HandPose"

const (
	loadModelMethod     = "/" + ServiceName + "/LoadModel"
	estimateHandsMethod = "/" + ServiceName + "/EstimateHands"
)

// GRPCLoader connects to a remote HandPose inference server.
type GRPCLoader struct {
	Address string
	// DialOptions replace the default insecure transport when set.
	DialOptions []grpc.DialOption
}

// Load dials the server and asks it to load the model described by cfg.
// The connection is closed again if the load fails.
func (l GRPCLoader) Load(ctx context.Context, cfg ModelConfig) (Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	opts := l.DialOptions
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(l.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrModelLoad, l.Address, err)
	}
	req, err := modelConfigToStruct(cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: encode config: %v", ErrModelLoad, err)
	}
	var resp structpb.Struct
	if err := conn.Invoke(ctx, loadModelMethod, req, &resp); err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, l.Address, err)
	}
	monitoring.Logf("[pose] model %s (%s/%s) loaded on %s", cfg.Model, cfg.Runtime, cfg.ModelType, l.Address)
	return &GRPCEstimator{conn: conn}, nil
}

// GRPCEstimator runs estimations against a loaded remote model.
type GRPCEstimator struct {
	conn *grpc.ClientConn
}

// Estimate sends one frame and decodes the hands in the reply.
func (e *GRPCEstimator) Estimate(ctx context.Context, frame capture.Frame) ([]HandEstimate, error) {
	if err := validateFrame(frame); err != nil {
		return nil, err
	}
	req, err := frameToStruct(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: encode frame: %v", ErrInference, err)
	}
	var resp structpb.Struct
	if err := e.conn.Invoke(ctx, estimateHandsMethod, req, &resp); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	hands, err := handsFromStruct(&resp)
	if err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrInference, err)
	}
	return hands, nil
}

// Close closes the connection.
func (e *GRPCEstimator) Close() error {
	return e.conn.Close()
}

// Backend is what a HandPose server runs on.
type Backend interface {
	LoadModel(ctx context.Context, cfg ModelConfig) error
	EstimateHands(ctx context.Context, frame capture.Frame) ([]HandEstimate, error)
}

// handPoseServer is the handler type the service descriptor dispatches to.
type handPoseServer interface {
	LoadModel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	EstimateHands(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var _ handPoseServer = (*GRPCService)(nil)

// GRPCService serves the HandPose protocol from a Backend.
type GRPCService struct {
	backend Backend
}

// NewGRPCService creates a service handler for backend.
func NewGRPCService(backend Backend) *GRPCService {
	return &GRPCService{backend: backend}
}

// Register adds the service to a gRPC server.
func (s *GRPCService) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&handPoseServiceDesc, s)
}

// LoadModel handles the LoadModel RPC.
func (s *GRPCService) LoadModel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "model config is required")
	}
	cfg := modelConfigFromStruct(in)
	if err := cfg.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.backend.LoadModel(ctx, cfg); err != nil {
		monitoring.Logf("[pose] LoadModel %s failed: %v", cfg.Model, err)
		return nil, status.Errorf(codes.FailedPrecondition, "load model: %v", err)
	}
	return &structpb.Struct{}, nil
}

// EstimateHands handles the EstimateHands RPC.
func (s *GRPCService) EstimateHands(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "frame is required")
	}
	frame, err := frameFromStruct(in)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode frame: %v", err)
	}
	hands, err := s.backend.EstimateHands(ctx, frame)
	if err != nil {
		switch {
		case errors.Is(err, ErrModelLoad):
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		case errors.Is(err, ErrInference):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		default:
			return nil, status.Errorf(codes.Internal, "estimate: %v", err)
		}
	}
	out, err := handsToStruct(hands)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode hands: %v", err)
	}
	return out, nil
}

var handPoseServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*handPoseServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "LoadModel", Handler: loadModelHandler},
		{MethodName: "EstimateHands", Handler: estimateHandsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lense/pose/v1/hand_pose.proto",
}

func loadModelHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(handPoseServer).LoadModel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: loadModelMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(handPoseServer).LoadModel(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func estimateHandsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(handPoseServer).EstimateHands(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: estimateHandsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(handPoseServer).EstimateHands(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// LoaderBackend serves a local Loader over the HandPose protocol, e.g. a
// fixture file for development without an inference server.
type LoaderBackend struct {
	Loader Loader

	mu  sync.Mutex
	est Estimator
}

// LoadModel loads a model, replacing any previously loaded one.
func (b *LoaderBackend) LoadModel(ctx context.Context, cfg ModelConfig) error {
	est, err := b.Loader.Load(ctx, cfg)
	if err != nil {
		return err
	}
	b.mu.Lock()
	old := b.est
	b.est = est
	b.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// EstimateHands runs the loaded estimator.
func (b *LoaderBackend) EstimateHands(ctx context.Context, frame capture.Frame) ([]HandEstimate, error) {
	b.mu.Lock()
	est := b.est
	b.mu.Unlock()
	if est == nil {
		return nil, fmt.Errorf("%w: no model loaded", ErrModelLoad)
	}
	return est.Estimate(ctx, frame)
}

// Close releases the loaded estimator.
func (b *LoaderBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.est == nil {
		return nil
	}
	err := b.est.Close()
	b.est = nil
	return err
}

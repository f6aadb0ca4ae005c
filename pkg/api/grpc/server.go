// Package grpcapi implements the calculator.v1.Calculator gRPC service and
// a typed client for it. Requests and responses are protobuf well-known
// wrapper messages, so no generated code is needed on either side.
package grpcapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lemonberrylabs/calculator/pkg/api"
	"github.com/lemonberrylabs/calculator/pkg/compiler"
	"github.com/lemonberrylabs/calculator/pkg/runtime"
	"github.com/lemonberrylabs/calculator/pkg/store"
	"github.com/lemonberrylabs/calculator/pkg/types"
)

const (
	serviceName = "calculator.v1.Calculator"

	// LevelMetadataKey carries the optimization level of an Evaluate call.
	LevelMetadataKey = "x-optimization-level"
	// EvaluationIDHeader names the stored evaluation in response headers.
	EvaluationIDHeader = "x-evaluation-id"
	// BackendHeader names the backend that won the race.
	BackendHeader = "x-backend"

	errorDomain = "calculator"
)

// CalculatorServer is the server API for the calculator.v1.Calculator
// service.
type CalculatorServer interface {
	Evaluate(context.Context, *wrapperspb.StringValue) (*wrapperspb.DoubleValue, error)
	Parse(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

// Server implements CalculatorServer.
type Server struct {
	store  *store.Store
	engine *runtime.Engine
	opts   api.Options
	grpc   *grpc.Server
}

// New creates a new gRPC server recording into the given store.
func New(s *store.Store, engine *runtime.Engine, opts api.Options) *Server {
	srv := &Server{
		store:  s,
		engine: engine,
		opts:   opts,
	}

	gs := grpc.NewServer()
	RegisterCalculatorServer(gs, srv)
	srv.grpc = gs

	return srv
}

// Serve starts listening on the given address and serves gRPC requests.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.ServeListener(lis)
}

// ServeListener serves gRPC requests on an existing listener.
func (s *Server) ServeListener(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop gracefully stops the gRPC server.
func (s *Server) GracefulStop() {
	s.grpc.GracefulStop()
}

// --- Calculator Service ---

// Evaluate evaluates the expression in req. The optimization level is
// read from the x-optimization-level metadata key.
func (s *Server) Evaluate(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.DoubleValue, error) {
	if err := s.checkLength(req.GetValue()); err != nil {
		return nil, err
	}

	level := s.opts.Level
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(LevelMetadataKey); len(v) > 0 {
			l, err := compiler.ParseOptimizationLevel(v[0])
			if err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			level = l
		}
	}

	ev, err := api.Evaluate(s.engine, s.store, req.GetValue(), level)
	header := metadata.Pairs(BackendHeader, ev.Backend)
	if ev.ID != "" {
		header.Set(EvaluationIDHeader, ev.ID)
	}
	if herr := grpc.SetHeader(ctx, header); herr != nil {
		slog.Debug("failed to set response header", slog.String("error", herr.Error()))
	}

	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.Double(ev.Result), nil
}

// Parse returns the rendered tree of the expression in req.
func (s *Server) Parse(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if err := s.checkLength(req.GetValue()); err != nil {
		return nil, err
	}

	node, err := s.engine.Parse(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(node.String()), nil
}

func (s *Server) checkLength(expression string) error {
	if err := s.opts.CheckLength(expression); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

// toStatus maps a calculator error to a status with an ErrorInfo detail
// whose reason is the error kind. Input errors are InvalidArgument; a
// panicking backend and errors outside the taxonomy are Internal.
func toStatus(err error) error {
	e, ok := types.AsError(err)
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}

	md := map[string]string{
		"stage": string(e.Stage()),
	}
	if e.Pos >= 0 {
		md["position"] = strconv.Itoa(e.Pos)
	}
	if e.Depth > 0 {
		md["depth"] = strconv.Itoa(e.Depth)
	}
	if e.Char != "" {
		md["char"] = e.Char
	}
	if e.Token != "" {
		md["token"] = e.Token
	}
	if e.Operator != "" {
		md["operator"] = e.Operator
	}

	code := codes.InvalidArgument
	if e.Stage() == types.StageRuntime {
		code = codes.Internal
	}
	st := status.New(code, e.Error())
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(e.Kind),
		Domain:   errorDomain,
		Metadata: md,
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// --- Service Registration ---

// RegisterCalculatorServer registers srv on gs.
func RegisterCalculatorServer(gs grpc.ServiceRegistrar, srv CalculatorServer) {
	gs.RegisterService(&calculatorServiceDesc, srv)
}

var calculatorServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CalculatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
		{MethodName: "Parse", Handler: parseHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "calculator/v1/calculator.proto",
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalculatorServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Evaluate"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CalculatorServer).Evaluate(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func parseHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalculatorServer).Parse(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Parse"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CalculatorServer).Parse(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

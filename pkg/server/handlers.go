package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/getmockd/protomock/pkg/fake"
	"github.com/getmockd/protomock/pkg/metrics"
	"github.com/getmockd/protomock/pkg/schema"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"
)

// makeUnaryHandler creates a unary handler for a specific method.
func (s *Server) makeUnaryHandler(serviceName string, method *schema.Method) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		return s.handleUnary(ctx, dec, serviceName, method)
	}
}

// makeStreamHandler creates a stream handler for a specific method.
func (s *Server) makeStreamHandler(serviceName string, method *schema.Method) func(srv interface{}, stream grpc.ServerStream) error {
	return func(srv interface{}, stream grpc.ServerStream) error {
		return s.handleStream(stream, serviceName, method)
	}
}

// handleUnknownStream catches calls to methods that were not registered,
// typically services added to the schema but unknown to the client path.
func (s *Server) handleUnknownStream(srv interface{}, stream grpc.ServerStream) error {
	fullMethod, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "failed to get method from stream")
	}

	// Format: /package.ServiceName/MethodName
	parts := strings.Split(fullMethod, "/")
	if len(parts) != 3 {
		return status.Errorf(codes.Unimplemented, "invalid method path: %s", fullMethod)
	}
	serviceName, methodName := parts[1], parts[2]

	svc := s.schema.GetService(serviceName)
	if svc == nil {
		return status.Errorf(codes.Unimplemented, "service %s not found", serviceName)
	}
	method := svc.GetMethod(methodName)
	if method == nil {
		return status.Errorf(codes.Unimplemented, "method %s not found", methodName)
	}

	return s.handleStream(stream, serviceName, method)
}

// handleUnary answers a unary call with one synthesized response.
func (s *Server) handleUnary(ctx context.Context, dec func(interface{}) error, serviceName string, method *schema.Method) (interface{}, error) {
	startTime := time.Now()
	md, _ := metadata.FromIncomingContext(ctx)

	reqMsg := dynamicpb.NewMessage(method.Input())
	if err := dec(reqMsg); err != nil {
		grpcErr := status.Errorf(codes.InvalidArgument, "failed to decode request: %v", err)
		s.logCall(startTime, serviceName, method, md, nil, 0, grpcErr)
		return nil, grpcErr
	}

	payload := fake.NewPayload(method.Output())
	countSynthesized(method.OutputType)

	s.log.Debug("unary call",
		"method", method.FullName,
		"response_type", method.OutputType)

	requests := []interface{}{dynamicMessageToValue(reqMsg)}
	s.logCall(startTime, serviceName, method, md, requests, 1, nil)

	return payload.Message, nil
}

// handleStream dispatches a streaming call by its shape. Bidirectional
// methods take the server-streaming path: the response stream is what gets
// mocked, inbound messages are drained and recorded.
func (s *Server) handleStream(stream grpc.ServerStream, serviceName string, method *schema.Method) error {
	md, _ := metadata.FromIncomingContext(stream.Context())

	switch {
	case method.ServerStreaming:
		return s.handleServerStreaming(stream, serviceName, method, md)
	case method.ClientStreaming:
		return s.handleClientStreaming(stream, serviceName, method, md)
	default:
		// Unary - should be handled by handleUnary
		return status.Error(codes.Internal, "unary method in stream handler")
	}
}

// handleClientStreaming reads the inbound stream to completion, then sends
// exactly one synthesized response.
func (s *Server) handleClientStreaming(stream grpc.ServerStream, serviceName string, method *schema.Method, md metadata.MD) error {
	startTime := time.Now()
	defer trackActiveStream(method.StreamKind())()

	var requests []interface{}
	for {
		reqMsg := dynamicpb.NewMessage(method.Input())
		if err := stream.RecvMsg(reqMsg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			grpcErr := status.Errorf(codes.InvalidArgument, "failed to receive request: %v", err)
			s.logCall(startTime, serviceName, method, md, requests, 0, grpcErr)
			return grpcErr
		}
		requests = append(requests, dynamicMessageToValue(reqMsg))
	}

	s.log.Debug("client stream drained",
		"method", method.FullName,
		"messages", len(requests))

	payload := fake.NewPayload(method.Output())
	countSynthesized(method.OutputType)

	if err := stream.SendMsg(payload.Message); err != nil {
		grpcErr := status.Errorf(codes.Internal, "failed to send response: %v", err)
		s.logCall(startTime, serviceName, method, md, requests, 0, grpcErr)
		return grpcErr
	}

	s.logCall(startTime, serviceName, method, md, requests, 1, nil)
	return nil
}

// handleServerStreaming pushes synthesized responses on the configured
// cadence. For a pure server-streaming method the single request is read
// first; for a bidirectional method the inbound stream is drained in the
// background while responses are pushed.
func (s *Server) handleServerStreaming(stream grpc.ServerStream, serviceName string, method *schema.Method, md metadata.MD) error {
	startTime := time.Now()
	defer trackActiveStream(method.StreamKind())()

	var requests []interface{}
	if method.ClientStreaming {
		go s.drainInbound(stream, method)
	} else {
		reqMsg := dynamicpb.NewMessage(method.Input())
		if err := stream.RecvMsg(reqMsg); err != nil {
			grpcErr := status.Errorf(codes.InvalidArgument, "failed to receive request: %v", err)
			s.logCall(startTime, serviceName, method, md, nil, 0, grpcErr)
			return grpcErr
		}
		requests = append(requests, dynamicMessageToValue(reqMsg))
	}

	pushed, err := s.pump(stream, method)

	s.log.Debug("server stream finished",
		"method", method.FullName,
		"pushed", pushed,
		"error", err)

	s.logCall(startTime, serviceName, method, md, requests, pushed, err)
	return err
}

// drainInbound consumes inbound messages on a bidirectional stream so the
// client can send freely. Received payloads are logged at debug level and
// otherwise ignored. Exits when the stream ends or the handler returns.
func (s *Server) drainInbound(stream grpc.ServerStream, method *schema.Method) {
	for {
		reqMsg := dynamicpb.NewMessage(method.Input())
		if err := stream.RecvMsg(reqMsg); err != nil {
			return
		}
		s.log.Debug("inbound message ignored", "method", method.FullName)
	}
}

// trackActiveStream bumps the active-streams gauge and returns the
// corresponding release func.
func trackActiveStream(kind string) func() {
	if metrics.ActiveStreams == nil {
		return func() {}
	}
	vec, err := metrics.ActiveStreams.WithLabels(kind)
	if err != nil {
		return func() {}
	}
	vec.Inc()
	return vec.Dec
}

// statusFromStreamContext maps a done stream context to the gRPC status the
// client will observe.
func statusFromStreamContext(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Canceled, fmt.Sprintf("client closed stream: %v", err))
}

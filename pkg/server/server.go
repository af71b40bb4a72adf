package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/getmockd/protomock/pkg/logging"
	"github.com/getmockd/protomock/pkg/metrics"
	"github.com/getmockd/protomock/pkg/requestlog"
	"github.com/getmockd/protomock/pkg/schema"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Default stream pacing.
const (
	DefaultStreamInterval = 1 * time.Second
	DefaultStreamTimeout  = 10 * time.Second
)

// Config holds the runtime settings for the mock server.
type Config struct {
	// Port is the TCP port to listen on. 0 picks an ephemeral port.
	Port int

	// Reflection enables the gRPC server reflection service.
	Reflection bool

	// TLSCert and TLSKey are paths to a PEM certificate and key. Both must
	// be set to serve TLS; otherwise the server is plaintext.
	TLSCert string
	TLSKey  string

	// StreamInterval is the delay between pushed messages on streaming
	// responses. Zero means DefaultStreamInterval.
	StreamInterval time.Duration

	// StreamTimeout is how long a streaming response keeps pushing before
	// the server closes it cleanly. Zero means DefaultStreamTimeout.
	StreamTimeout time.Duration
}

func (c *Config) streamInterval() time.Duration {
	if c.StreamInterval <= 0 {
		return DefaultStreamInterval
	}
	return c.StreamInterval
}

func (c *Config) streamTimeout() time.Duration {
	if c.StreamTimeout <= 0 {
		return DefaultStreamTimeout
	}
	return c.StreamTimeout
}

// Server is a mock gRPC server that synthesizes responses from proto
// schema definitions.
type Server struct {
	config     *Config
	schema     *schema.Schema
	grpcServer *grpc.Server
	listener   net.Listener
	mu         sync.RWMutex
	running    bool
	startedAt  time.Time
	log        *slog.Logger

	// Request logging support
	requestLoggerMu sync.RWMutex
	requestLogger   requestlog.Logger
}

// NewServer creates a new mock gRPC server.
func NewServer(config *Config, sch *schema.Schema) (*Server, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if sch == nil {
		return nil, ErrNilSchema
	}

	return &Server{
		config: config,
		schema: sch,
		log:    logging.Nop(),
	}, nil
}

// SetLogger sets the operational logger for the server.
func (s *Server) SetLogger(log *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if log != nil {
		s.log = log
	} else {
		s.log = logging.Nop()
	}
}

// Start binds the listener and begins serving. Method handlers are built
// up front so schema problems surface here rather than on first call.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrServerAlreadyRunning
	}

	descs, err := s.buildServiceDescs()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	opts := []grpc.ServerOption{
		grpc.UnknownServiceHandler(s.handleUnknownStream),
	}
	if s.config.TLSCert != "" && s.config.TLSKey != "" {
		creds, err := credentials.NewServerTLSFromFile(s.config.TLSCert, s.config.TLSKey)
		if err != nil {
			listener.Close()
			s.listener = nil
			return fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}

	s.grpcServer = grpc.NewServer(opts...)

	for _, desc := range descs {
		s.grpcServer.RegisterService(desc, struct{}{})
	}

	if s.config.Reflection {
		reflection.Register(s.grpcServer)
	}

	go func() {
		if err := s.grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			// Log error but don't crash - server may have been stopped
			s.log.Error("gRPC server error", "error", err)
		}
	}()

	s.running = true
	s.startedAt = time.Now()
	s.log.Info("mock gRPC server started",
		"address", listener.Addr().String(),
		"services", s.schema.ServiceCount(),
		"methods", s.schema.MethodCount(),
		"reflection", s.config.Reflection,
		"tls", s.config.TLSCert != "")
	return nil
}

// Stop stops the gRPC server gracefully, forcing after timeout.
func (s *Server) Stop(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if s.grpcServer != nil {
		done := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(done)
		}()

		select {
		case <-done:
			// Graceful stop completed
		case <-time.After(timeout):
			s.grpcServer.Stop()
		case <-ctx.Done():
			s.grpcServer.Stop()
		}
	}

	s.running = false
	s.startedAt = time.Time{}
	s.log.Info("mock gRPC server stopped")
	return nil
}

// IsRunning returns true if server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the address the server is listening on.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return 0
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running || s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// Schema returns the proto schema the server serves.
func (s *Server) Schema() *schema.Schema {
	return s.schema
}

// buildServiceDescs turns every schema service into a grpc.ServiceDesc,
// classifying each method by its call shape. A method whose request or
// response type cannot be resolved fails the whole build.
func (s *Server) buildServiceDescs() ([]*grpc.ServiceDesc, error) {
	descs := make([]*grpc.ServiceDesc, 0, s.schema.ServiceCount())

	for _, serviceName := range s.schema.ListServices() {
		svc := s.schema.GetService(serviceName)
		if svc == nil {
			continue
		}

		methods := make([]grpc.MethodDesc, 0)
		streams := make([]grpc.StreamDesc, 0)

		for _, methodName := range svc.ListMethods() {
			method := svc.GetMethod(methodName)
			if method == nil {
				continue
			}
			if method.Input() == nil || method.Output() == nil {
				return nil, fmt.Errorf("cannot bind %s/%s: %w", serviceName, methodName, ErrUnresolvableType)
			}

			if method.IsUnary() {
				methods = append(methods, grpc.MethodDesc{
					MethodName: methodName,
					Handler:    s.makeUnaryHandler(serviceName, method),
				})
			} else {
				streams = append(streams, grpc.StreamDesc{
					StreamName:    methodName,
					Handler:       s.makeStreamHandler(serviceName, method),
					ServerStreams: method.ServerStreaming,
					ClientStreams: method.ClientStreaming,
				})
			}
		}

		descs = append(descs, &grpc.ServiceDesc{
			ServiceName: serviceName,
			HandlerType: (*interface{})(nil),
			Methods:     methods,
			Streams:     streams,
			Metadata:    nil,
		})
	}

	return descs, nil
}

// SetRequestLogger sets the request logger for call recording.
func (s *Server) SetRequestLogger(logger requestlog.Logger) {
	s.requestLoggerMu.Lock()
	defer s.requestLoggerMu.Unlock()
	s.requestLogger = logger
}

// GetRequestLogger returns the current request logger.
func (s *Server) GetRequestLogger() requestlog.Logger {
	s.requestLoggerMu.RLock()
	defer s.requestLoggerMu.RUnlock()
	return s.requestLogger
}

// dynamicMessageToValue converts a protobuf message to a generic JSON value
// for request logging.
func dynamicMessageToValue(msg proto.Message) interface{} {
	if msg == nil {
		return nil
	}

	jsonBytes, err := protojson.Marshal(msg)
	if err != nil {
		return nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil
	}
	return result
}

// generateLogID generates a unique ID for request log entries.
func generateLogID() string {
	return fmt.Sprintf("grpc-%d", time.Now().UnixNano())
}

// logCall records metrics for a finished call and, when a request logger is
// attached, appends a log entry.
func (s *Server) logCall(startTime time.Time, serviceName string, method *schema.Method, md metadata.MD, requests []interface{}, responseCount int, callErr error) {
	fullPath := fmt.Sprintf("/%s/%s", serviceName, method.Name)
	s.recordCallMetrics(fullPath, callErr)

	logger := s.GetRequestLogger()
	if logger == nil {
		return
	}

	statusCode := "OK"
	errorMsg := ""
	if callErr != nil {
		if st, ok := status.FromError(callErr); ok {
			statusCode = st.Code().String()
		} else {
			statusCode = codes.Unknown.String()
		}
		errorMsg = callErr.Error()
	}

	var mdMap map[string][]string
	if md != nil {
		mdMap = make(map[string][]string, len(md))
		for k, v := range md {
			mdMap[k] = v
		}
	}

	logger.Log(&requestlog.Entry{
		ID:            generateLogID(),
		Timestamp:     startTime,
		Service:       serviceName,
		Method:        method.Name,
		Path:          fullPath,
		StreamKind:    method.StreamKind(),
		Metadata:      mdMap,
		Requests:      requests,
		ResponseCount: responseCount,
		StatusCode:    statusCode,
		DurationMs:    int(time.Since(startTime).Milliseconds()),
		Error:         errorMsg,
	})
}

// recordCallMetrics records per-call counters.
func (s *Server) recordCallMetrics(fullPath string, callErr error) {
	statusCode := "ok"
	if callErr != nil {
		if st, ok := status.FromError(callErr); ok {
			statusCode = strings.ToLower(st.Code().String())
		} else {
			statusCode = "unknown"
		}
	}

	if metrics.CallsTotal != nil {
		if vec, err := metrics.CallsTotal.WithLabels(fullPath, statusCode); err == nil {
			_ = vec.Inc()
		}
	}
}

// countSynthesized bumps the synthesized-message counter for a type.
func countSynthesized(typeName string) {
	if metrics.MessagesSynthesized != nil {
		if vec, err := metrics.MessagesSynthesized.WithLabels(typeName); err == nil {
			_ = vec.Inc()
		}
	}
}

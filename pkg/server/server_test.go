package server

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/getmockd/protomock/pkg/requestlog"
	"github.com/getmockd/protomock/pkg/schema"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	"github.com/jhump/protoreflect/dynamic/grpcdynamic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"
)

const testProtoPath = "testdata/mock.proto"

func getTestSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.ParseFile(testProtoPath, nil)
	require.NoError(t, err)
	return sch
}

// getTestDescriptors returns jhump/protoreflect descriptors for dynamic client testing
func getTestDescriptors(t *testing.T) []*desc.FileDescriptor {
	t.Helper()
	parser := protoparse.Parser{}
	files, err := parser.ParseFiles(testProtoPath)
	require.NoError(t, err)
	return files
}

// getMethodDesc returns the jhump method descriptor for a service/method name
func getMethodDesc(t *testing.T, files []*desc.FileDescriptor, serviceName, methodName string) *desc.MethodDescriptor {
	t.Helper()
	for _, file := range files {
		for _, svc := range file.GetServices() {
			if svc.GetFullyQualifiedName() == serviceName {
				for _, method := range svc.GetMethods() {
					if method.GetName() == methodName {
						return method
					}
				}
			}
		}
	}
	t.Fatalf("method %s/%s not found", serviceName, methodName)
	return nil
}

// startTestServer starts a server on an ephemeral port and returns it with
// an open client connection. Both are torn down when the test finishes.
func startTestServer(t *testing.T, config *Config) (*Server, *grpc.ClientConn) {
	t.Helper()
	srv, err := NewServer(config, getTestSchema(t))
	require.NoError(t, err)

	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		_ = srv.Stop(context.Background(), 5*time.Second)
	})

	conn, err := grpc.NewClient(srv.Address(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return srv, conn
}

func TestNewServer(t *testing.T) {
	sch := getTestSchema(t)

	tests := []struct {
		name    string
		config  *Config
		schema  *schema.Schema
		wantErr error
	}{
		{
			name:    "valid config and schema",
			config:  &Config{Port: 50051},
			schema:  sch,
			wantErr: nil,
		},
		{
			name:    "nil config",
			config:  nil,
			schema:  sch,
			wantErr: ErrNilConfig,
		},
		{
			name:    "nil schema",
			config:  &Config{Port: 50051},
			schema:  nil,
			wantErr: ErrNilSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := NewServer(tt.config, tt.schema)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, srv)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, srv)
			}
		})
	}
}

func TestServerStartStop(t *testing.T) {
	srv, err := NewServer(&Config{Port: 0, Reflection: true}, getTestSchema(t))
	require.NoError(t, err)

	// Should not be running initially
	assert.False(t, srv.IsRunning())

	err = srv.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, srv.IsRunning())
	assert.NotEmpty(t, srv.Address())
	assert.NotZero(t, srv.Port())

	// Starting again should error
	err = srv.Start(context.Background())
	assert.ErrorIs(t, err, ErrServerAlreadyRunning)

	err = srv.Stop(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.False(t, srv.IsRunning())

	// Stopping again should be fine (no-op)
	err = srv.Stop(context.Background(), 5*time.Second)
	assert.NoError(t, err)
}

func TestStartUnresolvableType(t *testing.T) {
	// A method assembled without descriptors has no resolvable input or
	// output type, which must fail startup rather than first call.
	broken := schema.New(&schema.Service{
		Name: "broken.Service",
		Methods: map[string]*schema.Method{
			"Do": {
				Name:       "Do",
				FullName:   "broken.Service.Do",
				InputType:  "broken.Missing",
				OutputType: "broken.Missing",
			},
		},
	})

	srv, err := NewServer(&Config{Port: 0}, broken)
	require.NoError(t, err)

	err = srv.Start(context.Background())
	require.ErrorIs(t, err, ErrUnresolvableType)
	assert.False(t, srv.IsRunning())
}

func TestUnaryCall(t *testing.T) {
	files := getTestDescriptors(t)
	_, conn := startTestServer(t, &Config{Port: 0, Reflection: true})

	methodDesc := getMethodDesc(t, files, "mocktest.WidgetService", "GetWidget")
	stub := grpcdynamic.NewStub(conn)

	reqMsg := dynamic.NewMessage(methodDesc.GetInputType())
	reqMsg.SetFieldByName("widgetId", "w-1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	respMsg, err := stub.InvokeRpc(ctx, methodDesc, reqMsg)
	require.NoError(t, err)

	resp := respMsg.(*dynamic.Message)

	// id-suffixed string fields get a UUID, plain strings "Hello".
	assert.Len(t, resp.GetFieldByName("widgetId"), 36)
	assert.Equal(t, "Hello", resp.GetFieldByName("name"))
	assert.Equal(t, int32(100), resp.GetFieldByName("weight"))

	tags, ok := resp.GetFieldByName("tags").([]interface{})
	require.True(t, ok)
	require.Len(t, tags, 1)
	assert.Equal(t, "Hello", tags[0])

	// First declared oneof alternative wins.
	assert.Equal(t, "Hello", resp.GetFieldByName("factory"))
	assert.Equal(t, "", resp.GetFieldByName("importer"))
}

func TestUnaryCallFreshPayloads(t *testing.T) {
	files := getTestDescriptors(t)
	_, conn := startTestServer(t, &Config{Port: 0})

	methodDesc := getMethodDesc(t, files, "mocktest.WidgetService", "GetWidget")
	stub := grpcdynamic.NewStub(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ids := make(map[string]bool)
	for i := 0; i < 2; i++ {
		reqMsg := dynamic.NewMessage(methodDesc.GetInputType())
		respMsg, err := stub.InvokeRpc(ctx, methodDesc, reqMsg)
		require.NoError(t, err)
		ids[respMsg.(*dynamic.Message).GetFieldByName("widgetId").(string)] = true
	}

	// UUIDs are regenerated per call.
	assert.Len(t, ids, 2)
}

func TestServerStreaming(t *testing.T) {
	files := getTestDescriptors(t)
	_, conn := startTestServer(t, &Config{
		Port:           0,
		StreamInterval: 20 * time.Millisecond,
		StreamTimeout:  200 * time.Millisecond,
	})

	methodDesc := getMethodDesc(t, files, "mocktest.WidgetService", "WatchWidgets")
	stub := grpcdynamic.NewStub(conn)

	reqMsg := dynamic.NewMessage(methodDesc.GetInputType())
	reqMsg.SetFieldByName("region", "eu")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := stub.InvokeRpcServerStream(ctx, methodDesc, reqMsg)
	require.NoError(t, err)

	count := 0
	for {
		resp, err := stream.RecvMsg()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, "Hello", resp.(*dynamic.Message).GetFieldByName("name"))
		count++
	}

	// 20ms interval over a 200ms window, with slack for scheduling jitter.
	assert.GreaterOrEqual(t, count, 5)
	assert.LessOrEqual(t, count, 11)
}

func TestServerStreamingClientCancel(t *testing.T) {
	files := getTestDescriptors(t)
	_, conn := startTestServer(t, &Config{
		Port:           0,
		StreamInterval: 20 * time.Millisecond,
		StreamTimeout:  10 * time.Second,
	})

	methodDesc := getMethodDesc(t, files, "mocktest.WidgetService", "WatchWidgets")
	stub := grpcdynamic.NewStub(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := stub.InvokeRpcServerStream(ctx, methodDesc, dynamic.NewMessage(methodDesc.GetInputType()))
	require.NoError(t, err)

	_, err = stream.RecvMsg()
	require.NoError(t, err)

	cancel()

	for {
		_, err = stream.RecvMsg()
		if err != nil {
			break
		}
	}
	require.NotEqual(t, io.EOF, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Canceled, st.Code())
}

func TestClientStreaming(t *testing.T) {
	files := getTestDescriptors(t)
	_, conn := startTestServer(t, &Config{Port: 0})

	methodDesc := getMethodDesc(t, files, "mocktest.WidgetService", "UploadWidgets")
	stub := grpcdynamic.NewStub(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := stub.InvokeRpcClientStream(ctx, methodDesc)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		reqMsg := dynamic.NewMessage(methodDesc.GetInputType())
		reqMsg.SetFieldByName("name", "inbound")
		require.NoError(t, stream.SendMsg(reqMsg))
	}

	resp, err := stream.CloseAndReceive()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), resp.(*dynamic.Message).GetFieldByName("accepted"))
}

func TestClientStreamingNoMessages(t *testing.T) {
	files := getTestDescriptors(t)
	_, conn := startTestServer(t, &Config{Port: 0})

	methodDesc := getMethodDesc(t, files, "mocktest.WidgetService", "UploadWidgets")
	stub := grpcdynamic.NewStub(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := stub.InvokeRpcClientStream(ctx, methodDesc)
	require.NoError(t, err)

	// An empty inbound stream still completes with one response.
	resp, err := stream.CloseAndReceive()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), resp.(*dynamic.Message).GetFieldByName("accepted"))
}

func TestBidirectionalStreaming(t *testing.T) {
	files := getTestDescriptors(t)
	_, conn := startTestServer(t, &Config{
		Port:           0,
		StreamInterval: 20 * time.Millisecond,
		StreamTimeout:  200 * time.Millisecond,
	})

	methodDesc := getMethodDesc(t, files, "mocktest.WidgetService", "SyncWidgets")
	stub := grpcdynamic.NewStub(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := stub.InvokeRpcBidiStream(ctx, methodDesc)
	require.NoError(t, err)

	// Inbound traffic is drained and does not affect the outbound cadence.
	for i := 0; i < 2; i++ {
		reqMsg := dynamic.NewMessage(methodDesc.GetInputType())
		reqMsg.SetFieldByName("name", "ignored")
		require.NoError(t, stream.SendMsg(reqMsg))
	}
	require.NoError(t, stream.CloseSend())

	count := 0
	for {
		resp, err := stream.RecvMsg()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, "Hello", resp.(*dynamic.Message).GetFieldByName("name"))
		count++
	}

	assert.GreaterOrEqual(t, count, 5)
	assert.LessOrEqual(t, count, 11)
}

func TestUnknownMethodUnimplemented(t *testing.T) {
	srv, conn := startTestServer(t, &Config{Port: 0})

	input := srv.Schema().GetService("mocktest.WidgetService").GetMethod("GetWidget").Input()
	req := dynamicpb.NewMessage(input)
	reply := dynamicpb.NewMessage(input)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := conn.Invoke(ctx, "/mocktest.WidgetService/Missing", req, reply)
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Unimplemented, st.Code())
}

func TestRequestLogging(t *testing.T) {
	files := getTestDescriptors(t)

	srv, err := NewServer(&Config{Port: 0}, getTestSchema(t))
	require.NoError(t, err)
	store := requestlog.NewMemoryStore(10)
	srv.SetRequestLogger(store)

	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop(context.Background(), 5*time.Second)

	conn, err := grpc.NewClient(srv.Address(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	methodDesc := getMethodDesc(t, files, "mocktest.StatusService", "Check")
	stub := grpcdynamic.NewStub(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = stub.InvokeRpc(ctx, methodDesc, dynamic.NewMessage(methodDesc.GetInputType()))
	require.NoError(t, err)

	entries := store.List()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "mocktest.StatusService", entry.Service)
	assert.Equal(t, "Check", entry.Method)
	assert.Equal(t, "/mocktest.StatusService/Check", entry.Path)
	assert.Equal(t, "unary", entry.StreamKind)
	assert.Equal(t, "OK", entry.StatusCode)
	assert.Equal(t, 1, entry.ResponseCount)
	require.Len(t, entry.Requests, 1)
}

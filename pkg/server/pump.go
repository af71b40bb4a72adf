package server

import (
	"time"

	"github.com/getmockd/protomock/pkg/fake"
	"github.com/getmockd/protomock/pkg/schema"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// pump pushes a freshly synthesized response every StreamInterval until
// StreamTimeout elapses, the client goes away, or a send fails. Timeout is
// a clean close: the client sees end-of-stream with no error. Returns the
// number of messages pushed.
func (s *Server) pump(stream grpc.ServerStream, method *schema.Method) (int, error) {
	ticker := time.NewTicker(s.config.streamInterval())
	defer ticker.Stop()

	deadline := time.NewTimer(s.config.streamTimeout())
	defer deadline.Stop()

	pushed := 0
	for {
		select {
		case <-stream.Context().Done():
			return pushed, statusFromStreamContext(stream.Context())

		case <-deadline.C:
			return pushed, nil

		case <-ticker.C:
			payload := fake.NewPayload(method.Output())
			countSynthesized(method.OutputType)
			if err := stream.SendMsg(payload.Message); err != nil {
				return pushed, status.Errorf(codes.Internal, "failed to send response: %v", err)
			}
			pushed++
		}
	}
}

package requestlog

import "time"

// Entry captures the details of one RPC call served by the mock.
type Entry struct {
	// ID is a unique identifier for the log entry.
	ID string `json:"id"`

	// Timestamp is when the call started.
	Timestamp time.Time `json:"timestamp"`

	// Service is the fully qualified service name.
	Service string `json:"service"`

	// Method is the method name.
	Method string `json:"method"`

	// Path is the full RPC path ("/package.Service/Method").
	Path string `json:"path"`

	// StreamKind is the call shape (unary, client_streaming, server_streaming).
	StreamKind string `json:"streamKind"`

	// Metadata holds the incoming call metadata (multi-value).
	Metadata map[string][]string `json:"metadata,omitempty"`

	// Requests holds the observed inbound messages as generic JSON values.
	Requests []interface{} `json:"requests,omitempty"`

	// ResponseCount is the number of messages pushed on the call.
	ResponseCount int `json:"responseCount"`

	// StatusCode is the gRPC status code name ("OK", "CANCELLED", ...).
	StatusCode string `json:"statusCode"`

	// DurationMs is the call duration in milliseconds.
	DurationMs int `json:"durationMs"`

	// Error contains the error message if the call failed.
	Error string `json:"error,omitempty"`
}

// Logger is the minimal interface for recording call entries. The server
// accepts this interface so entries can go to memory, disk, or elsewhere.
type Logger interface {
	Log(entry *Entry)
}

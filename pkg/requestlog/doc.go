// Package requestlog captures per-call request/response entries for
// inspection while developing against the mock server.
//
// The gRPC server logs one Entry per call through the Logger interface.
// MemoryStore is the default implementation: a bounded in-memory ring that
// evicts the oldest entries once full.
package requestlog

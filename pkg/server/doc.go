// Package server implements the mock gRPC server. It registers every
// service found in a compiled schema with handlers chosen by call shape:
// unary calls return a single synthesized response, client-streaming calls
// drain the inbound stream and answer once, and server-streaming calls
// (including bidirectional ones) push synthesized responses on a ticker
// until a timeout elapses or the client goes away.
package server

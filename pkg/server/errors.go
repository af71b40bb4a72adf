package server

import "errors"

// Server errors.
var (
	// ErrServerNotRunning is returned when attempting operations on a stopped server.
	ErrServerNotRunning = errors.New("server is not running")

	// ErrServerAlreadyRunning is returned when attempting to start a running server.
	ErrServerAlreadyRunning = errors.New("server is already running")

	// ErrNilConfig is returned when server config is nil.
	ErrNilConfig = errors.New("config cannot be nil")

	// ErrNilSchema is returned when proto schema is nil.
	ErrNilSchema = errors.New("schema cannot be nil")

	// ErrUnresolvableType is returned at startup when a method references a
	// message type whose descriptor cannot be resolved.
	ErrUnresolvableType = errors.New("unresolvable message type")
)

package metrics

import "sync"

// Default metrics for the mock server, initialized by Init().
//
// Label conventions: method is the full RPC path ("/package.Service/Method"),
// status is the lowercase gRPC code name ("ok", "cancelled", ...), kind is
// the call shape ("unary", "client_streaming", "server_streaming"), and type
// is a fully qualified message type name.
var (
	// CallsTotal counts completed RPC calls.
	// Labels: method, status
	CallsTotal *Counter

	// ActiveStreams tracks streaming calls currently in flight.
	// Labels: kind
	ActiveStreams *Gauge

	// MessagesSynthesized counts synthesized response payloads.
	// Labels: type
	MessagesSynthesized *Counter

	// UptimeSeconds is a gauge of the server uptime in seconds.
	UptimeSeconds *Gauge

	defaultRegistry *Registry
	initOnce        sync.Once
)

// Init initializes the default metrics and returns the registry.
// Idempotent and safe to call multiple times.
func Init() *Registry {
	initOnce.Do(func() {
		defaultRegistry = NewRegistry()

		CallsTotal = defaultRegistry.NewCounter(
			"protomock_calls_total",
			"Total number of RPC calls served",
			"method", "status",
		)

		ActiveStreams = defaultRegistry.NewGauge(
			"protomock_active_streams",
			"Number of streaming calls in flight",
			"kind",
		)

		MessagesSynthesized = defaultRegistry.NewCounter(
			"protomock_messages_synthesized_total",
			"Total number of synthesized response payloads",
			"type",
		)

		UptimeSeconds = defaultRegistry.NewGauge(
			"protomock_uptime_seconds",
			"Server uptime in seconds",
		)
	})
	return defaultRegistry
}

// DefaultRegistry returns the registry created by Init, or nil before Init.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

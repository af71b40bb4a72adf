// Package metrics provides lightweight in-process metrics for protomock.
//
// It implements labeled counters and gauges with atomic storage and a
// Prometheus-text-format HTTP handler, without pulling in a client library.
// Call Init() once at startup to create the default metrics, then record
// through the package variables:
//
//	metrics.Init()
//	if vec, err := metrics.CallsTotal.WithLabels("/svc/Method", "ok"); err == nil {
//	    vec.Inc()
//	}
//
// All record paths are safe for concurrent use.
package metrics

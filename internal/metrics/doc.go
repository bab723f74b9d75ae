// Package metrics exposes Prometheus metrics for an MQTT service.
//
// One Metrics value is created per process and shared by the service
// lifecycle, the connection supervisor and application handlers. All
// recording methods are safe to call on a nil *Metrics, which disables
// metrics without nil checks at every call site.
//
// Metrics are registered on a private registry (not the global default),
// served by Handler:
//
//	m := metrics.New("echoservice")
//	http.Handle("/metrics", m.Handler())
package metrics

// Package api provides the admin HTTP server of an MQTT service.
//
// It exposes Prometheus metrics, a health endpoint for supervisors and load
// balancers, a JSON status document and a reload trigger equivalent to
// SIGHUP. It is not part of the MQTT data path.
//
// Routes:
//
//	GET  /metrics            Prometheus exposition
//	GET  /healthz            200 when running and connected, 503 otherwise
//	GET  /api/v1/status      service, connection and runtime state
//	POST /api/v1/reload      queue a configuration reload (202)
//	GET  /api/v1/journal     recent journaled messages (when configured)
//
// Lifecycle:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

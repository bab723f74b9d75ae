// Package influxdb provides optional InfluxDB telemetry for services built
// on the skeleton.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health monitoring. Services
// enable it through an "influxdb" section in their configuration; the core
// never writes telemetry on its own.
//
// # Usage
//
//	var cfg config.InfluxDBConfig
//	if _, err := doc.DecodeSection("influxdb", &cfg); err != nil {
//	    return err
//	}
//
//	client, err := influxdb.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteMessage("echoservice/echo", "echo", 42)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Write errors are delivered asynchronously through SetOnError.
// Connection and health check errors are returned directly.
package influxdb

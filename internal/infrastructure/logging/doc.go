// Package logging provides structured logging for MQTT services.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the service skeleton.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Log file output, optionally mirrored to stderr in foreground mode
//   - Thread-safe for concurrent use
//
// # Usage
//
//	logger, err := logging.New(config.LoggingConfig{
//	    Level:  "info",
//	    Output: "/var/log/echoservice.log",
//	}, "echoservice", "1.0.0")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	logger.Info("connected", "broker", "localhost:1883")
//
// # Security
//
// Never log secrets: the MQTT password is never passed to the logger.
package logging

// Package service is the lifecycle core of an MQTT service.
//
// A concrete service supplies Hooks and topic handlers; this package owns
// everything else:
//
//   - Configuration loading and hot reload (Service.Reload)
//   - The broker connection handle, replaced only when connection-relevant
//     settings change (Supervisor)
//   - Subscriptions, re-issued after every successful connect
//   - Dispatch of inbound messages to registered handlers
//   - Graceful shutdown with a bounded wait for the disconnect
//
// # Execution Contexts
//
// Two goroutine families touch the service state:
//
//	supervisory  - Service.Run: reloads, connection events, shutdown
//	transport    - paho's goroutines: inbound messages, callback events
//
// All writes to the active configuration and the active connection handle
// happen on the supervisory goroutine. Transport callbacks only enqueue
// events for it, except inbound messages, which are dispatched directly on
// the transport goroutine using the active base topic.
//
// # Usage
//
//	svc := service.New(service.Options{
//	    Name:       "echoservice",
//	    ConfigPath: "/etc/echoservice.conf",
//	    Hooks:      hooks,
//	    Logger:     log,
//	})
//	svc.Register("echoservice/echo", onEcho)
//
//	go func() {
//	    for range sighup {
//	        svc.Reload()
//	    }
//	}()
//	err := svc.Run(ctx) // returns after ctx is cancelled and shutdown completed
package service

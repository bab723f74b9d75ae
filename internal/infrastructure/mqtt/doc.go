// Package mqtt provides the broker transport used by the service skeleton.
//
// This package manages:
//   - A single paho.mqtt.golang connection per Client
//   - Asynchronous connect with the result reported through a callback
//   - Requested disconnects acknowledged through a callback
//   - Subscriptions routed to one inbound message callback
//   - Publishing with QoS and retain flags
//
// A Client is the "connection handle" of the service: it knows nothing about
// topic patterns, base topics or configuration reloads. The owner (see
// internal/service) creates one Client per set of connection settings and
// replaces it wholesale when those settings change.
//
// # Callbacks
//
// All three callbacks run on paho goroutines:
//
//	OnConnect(code)     - code 0 on success, the CONNACK/network code otherwise
//	OnDisconnect(err)   - err nil after a requested Disconnect, non-nil on loss
//	OnMessage(...)      - every message delivered on any subscription
//
// After Stop, no further callbacks are delivered.
//
// # Security Considerations
//
//   - TLS (ssl://) is used when the settings request it, minimum TLS 1.2
//   - Credentials are only sent when both user and password are configured
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT, mqtt.Callbacks{
//	    OnConnect:    func(code byte) { ... },
//	    OnDisconnect: func(err error) { ... },
//	    OnMessage:    func(topic string, payload []byte, qos byte, retained bool) { ... },
//	})
//	client.Connect()
//	...
//	client.Disconnect()
//	client.Stop()
package mqtt

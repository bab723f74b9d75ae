// Package dispatch routes inbound MQTT messages to registered handlers.
//
// This package manages:
//   - Broker-style topic filter matching (+ and # wildcards)
//   - An ordered registry of filter → handler registrations
//   - Fan-out of one message to every matching registration
//   - Best-effort JSON decoding of inbound payloads
//
// # Matching
//
// Filters and topics are split on "/" into levels. A trailing empty level
// (a topic or filter ending in "/") is ignored on both sides, so "a/b/" and
// "a/b" are equivalent.
//
//   - "+" matches exactly one level
//   - "#" matches the remaining levels, including none ("a/#" matches "a")
//   - any other level must be equal
//
// "#" is only accepted as the final level of a filter. Wildcards must occupy
// a whole level. Register rejects other forms with ErrInvalidPattern.
//
// # Ordering
//
// Registrations are kept in insertion order and dispatched in that order.
// A message that matches several registrations triggers all of them; within
// one registration its handlers run in the order they were supplied.
//
// # Failure Semantics
//
// Dispatch does not recover from handler panics. Guarding handler code is
// the responsibility of the integrating service (the paho transport in
// internal/infrastructure/mqtt recovers on its own goroutine).
//
// # Usage
//
//	reg := dispatch.NewRegistry()
//	id, err := reg.Register("echoservice/echo", func(topic string, msg *dispatch.Message) {
//	    log.Printf("echo request on %s: %v", topic, msg.Payload.Value())
//	})
//
//	// Inbound message on "svc/echoservice/echo" with base topic "svc/"
//	reg.Dispatch("svc/echoservice/echo", msg, "svc/")
//
//	reg.Remove(id)
package dispatch

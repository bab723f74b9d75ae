package dispatch

import (
	"encoding/json"
	"fmt"
)

// Message is a single inbound MQTT message as seen by handlers.
//
// Messages are created per network event, dispatched synchronously and
// never persisted.
type Message struct {
	// Topic is the full topic the broker delivered the message on,
	// including any base topic prefix.
	Topic string

	// Payload carries the raw bytes and, when they parsed, the decoded value.
	Payload Payload

	// QoS is the delivery QoS reported by the transport.
	QoS byte

	// Retained is true when the broker replayed a retained message.
	Retained bool
}

// NewMessage builds a Message and best-effort decodes its payload.
func NewMessage(topic string, raw []byte, qos byte, retained bool) *Message {
	return &Message{
		Topic:    topic,
		Payload:  DecodePayload(raw),
		QoS:      qos,
		Retained: retained,
	}
}

// Payload is a tagged variant holding either a decoded JSON value or the
// raw bytes that failed to decode. The raw bytes are always retained.
type Payload struct {
	raw        []byte
	value      any
	structured bool
}

// DecodePayload attempts to decode raw as JSON. Decode failure is not an
// error: the payload simply stays unstructured.
func DecodePayload(raw []byte) Payload {
	p := Payload{raw: raw}
	if len(raw) == 0 {
		return p
	}

	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		p.value = v
		p.structured = true
	}
	return p
}

// Raw returns the payload bytes exactly as received.
func (p Payload) Raw() []byte {
	return p.raw
}

// IsStructured reports whether the payload decoded as JSON.
func (p Payload) IsStructured() bool {
	return p.structured
}

// Structured returns the decoded JSON value and true, or nil and false if
// the payload did not decode.
func (p Payload) Structured() (any, bool) {
	return p.value, p.structured
}

// Value returns the decoded JSON value when available, otherwise the raw
// bytes ([]byte).
func (p Payload) Value() any {
	if p.structured {
		return p.value
	}
	return p.raw
}

// Decode unmarshals the payload into v. Unlike DecodePayload it reports
// malformed JSON as an error.
func (p Payload) Decode(v any) error {
	if err := json.Unmarshal(p.raw, v); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}

// Field returns a top-level member of a decoded JSON object.
func (p Payload) Field(name string) (any, bool) {
	obj, ok := p.value.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := obj[name]
	return v, ok
}

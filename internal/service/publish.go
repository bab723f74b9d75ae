package service

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/mqttservice/internal/metrics"
)

type publishOptions struct {
	qos              byte
	retain           bool
	prependBaseTopic bool
}

// PublishOption adjusts a single Publish call.
type PublishOption func(*publishOptions)

// WithQoS sets the publish QoS (default 0).
func WithQoS(qos byte) PublishOption {
	return func(o *publishOptions) { o.qos = qos }
}

// WithRetain asks the broker to retain the message.
func WithRetain() PublishOption {
	return func(o *publishOptions) { o.retain = true }
}

// WithoutBaseTopic publishes on topic exactly as given.
func WithoutBaseTopic() PublishOption {
	return func(o *publishOptions) { o.prependBaseTopic = false }
}

// Publish sends payload on topic, prefixed with the base topic unless
// WithoutBaseTopic is given.
//
// Payload encoding:
//   - nil: empty message
//   - []byte, string, json.RawMessage: sent unchanged
//   - anything else: JSON encoded
//
// Publish is best effort. Without a connection handle the message is
// dropped with a warning; transport failures are logged. No error reaches
// the caller.
func (s *Supervisor) Publish(topic string, payload any, opts ...PublishOption) {
	o := publishOptions{prependBaseTopic: true}
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.RLock()
	t := s.transport
	baseTopic := s.settings.BaseTopic
	s.mu.RUnlock()

	if t == nil {
		s.metrics.RecordPublish(metrics.ResultDropped)
		s.logger.Warn("publish without MQTT connection, message dropped", "topic", topic)
		return
	}

	if o.prependBaseTopic {
		topic = baseTopic + topic
	}

	data, err := encodePayload(payload)
	if err != nil {
		s.metrics.RecordPublish(metrics.ResultError)
		s.logger.Error("MQTT publish failed", "topic", topic, "error", err)
		return
	}

	if err := t.Publish(topic, data, o.qos, o.retain); err != nil {
		s.metrics.RecordPublish(metrics.ResultError)
		s.logger.Error("MQTT publish failed", "topic", topic, "error", err)
		return
	}

	s.metrics.RecordPublish(metrics.ResultOK)
	s.logger.Debug("MQTT published", "topic", topic, "bytes", len(data), "qos", o.qos, "retain", o.retain)
}

// encodePayload converts a publish payload to its wire bytes.
func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	case string:
		return []byte(p), nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return data, nil
}

package service

import (
	"github.com/nerrad567/mqttservice/internal/infrastructure/config"
	"github.com/nerrad567/mqttservice/internal/infrastructure/logging"
	"github.com/nerrad567/mqttservice/internal/infrastructure/mqtt"
)

// Transport is a single broker connection handle.
//
// Connect and Disconnect are asynchronous; their outcome arrives through
// the callbacks the handle was created with. After Stop the handle makes
// no further callbacks.
type Transport interface {
	Connect() error
	Disconnect()
	Subscribe(topic string, qos byte) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Stop()
}

// TransportFactory builds a new, unconnected handle for settings.
type TransportFactory func(settings config.MQTTSettings, callbacks mqtt.Callbacks) Transport

// MQTTTransport returns a TransportFactory backed by paho (mqtt.Client).
func MQTTTransport(logger *logging.Logger) TransportFactory {
	return func(settings config.MQTTSettings, callbacks mqtt.Callbacks) Transport {
		client := mqtt.New(settings, callbacks)
		if logger != nil {
			client.SetLogger(logger)
		}
		return client
	}
}

package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/mqttservice/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time for one connection attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultOperationTimeout bounds publish and subscribe acknowledgment waits.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval when the settings don't set one.
	defaultKeepAlive = 60 * time.Second

	// defaultMaxReconnectInterval caps paho's reconnect backoff after a lost connection.
	defaultMaxReconnectInterval = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// maxPayloadSize rejects publishes larger than typical broker limits (1MB).
	maxPayloadSize = 1 << 20

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12

	// clientIDSuffixLength is how much of a UUID is appended to generated client IDs.
	clientIDSuffixLength = 8
)

// DefaultClientID returns prefix followed by a short random suffix, so that
// several instances of one service can share a broker.
func DefaultClientID(prefix string) string {
	if prefix == "" {
		prefix = "mqttservice"
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:clientIDSuffixLength])
}

// BrokerURL returns the paho broker URL for the settings.
func BrokerURL(s config.MQTTSettings) string {
	scheme := "tcp"
	if s.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, s.Broker, s.Port)
}

// buildClientOptions creates paho MQTT options from connection settings.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (only if both user and password are set)
//   - No retry of the initial connect; auto-reconnect after a lost connection
//   - Keepalive and connect timeout
//   - Handlers running concurrently, so they may publish and wait for acks
func buildClientOptions(s config.MQTTSettings) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(BrokerURL(s))

	clientID := s.ClientID
	if clientID == "" {
		clientID = DefaultClientID("")
	}
	opts.SetClientID(clientID)

	if s.User != nil && s.Password != nil {
		opts.SetUsername(*s.User)
		opts.SetPassword(*s.Password)
	}

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	// The initial connect result is reported once; the owner decides what to
	// do about a failure. A connection that was up is re-established by paho.
	opts.SetConnectRetry(false)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(defaultMaxReconnectInterval)

	opts.SetConnectTimeout(defaultConnectTimeout)

	keepAlive := defaultKeepAlive
	if s.KeepAlive > 0 {
		keepAlive = time.Duration(s.KeepAlive) * time.Second
	}
	opts.SetKeepAlive(keepAlive)

	// Handlers may publish with QoS > 0 and wait for the ack; with ordered
	// delivery that would block paho's router and deadlock.
	opts.SetOrderMatters(false)

	if s.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

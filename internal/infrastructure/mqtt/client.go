package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mqttservice/internal/infrastructure/config"
)

// CodeUnknownFailure is reported to OnConnect when paho failed without a
// CONNACK return code (e.g. a timeout).
const CodeUnknownFailure byte = 0xFF

// Callbacks receive connection events from a Client.
// Nil callbacks are skipped.
type Callbacks struct {
	// OnConnect is called with 0 after every successful connect (including
	// paho's automatic reconnects) and with a non-zero code when a Connect
	// attempt fails.
	OnConnect func(code byte)

	// OnDisconnect is called with nil once a requested Disconnect completed,
	// or with the cause when the connection was lost.
	OnDisconnect func(err error)

	// OnMessage is called for every inbound message.
	OnMessage func(topic string, payload []byte, qos byte, retained bool)
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Client wraps paho.mqtt.golang as a single-use connection handle.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Callbacks stop as soon as Stop is called.
type Client struct {
	client    pahomqtt.Client
	settings  config.MQTTSettings
	callbacks Callbacks

	stopped atomic.Bool

	// logger for panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// New creates an unconnected Client for the given settings.
//
// Parameters:
//   - settings: Broker connection settings (validated)
//   - callbacks: Event callbacks, bound for the lifetime of the Client
//
// Returns:
//   - *Client: Call Connect to start the connection
func New(settings config.MQTTSettings, callbacks Callbacks) *Client {
	opts := buildClientOptions(settings)

	c := &Client{
		settings:  settings,
		callbacks: callbacks,
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.notifyConnect(0)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.notifyDisconnect(err)
	})
	opts.SetDefaultPublishHandler(c.handleMessage)

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect starts connecting in the background.
// The outcome is reported through OnConnect.
//
// Returns:
//   - error: ErrStopped if the client was stopped, nil otherwise
func (c *Client) Connect() error {
	if c.stopped.Load() {
		return ErrStopped
	}

	token := c.client.Connect()
	go func() {
		token.Wait()
		err := token.Error()
		if err == nil {
			return // OnConnectHandler reports success
		}

		code := CodeUnknownFailure
		if ct, ok := token.(*pahomqtt.ConnectToken); ok && ct.ReturnCode() != 0 {
			code = ct.ReturnCode()
		}
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT connect attempt failed",
				"broker", BrokerURL(c.settings),
				"code", code,
				"error", err,
			)
		}
		c.notifyConnect(code)
	}()

	return nil
}

// Disconnect requests a graceful disconnect in the background.
// OnDisconnect(nil) is called once pending work has been flushed.
func (c *Client) Disconnect() {
	if c.stopped.Load() {
		return
	}

	go func() {
		c.client.Disconnect(defaultDisconnectQuiesce)
		c.notifyDisconnect(nil)
	}()
}

// Stop ends all network activity and suppresses further callbacks.
// It is safe to call more than once.
func (c *Client) Stop() {
	if c.stopped.Swap(true) {
		return
	}
	// paho's IsConnected also covers a pending automatic reconnect.
	if c.client.IsConnected() {
		c.client.Disconnect(0)
	}
}

// Subscribe subscribes to a topic filter. Messages are delivered through
// OnMessage.
//
// Parameters:
//   - topic: The topic filter to subscribe to
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Subscribe(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(topic, qos, nil)
	if !token.WaitTimeout(defaultOperationTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultOperationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// Publish sends a message and waits for the broker acknowledgment (QoS > 0).
//
// Parameters:
//   - topic: The topic to publish to
//   - payload: The message payload (max 1MB, may be empty)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultOperationTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultOperationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	return !c.stopped.Load() && c.client.IsConnectionOpen()
}

// HealthCheck verifies the MQTT connection is alive.
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// SetLogger sets a logger for connect failures and handler panics.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) notifyConnect(code byte) {
	if c.stopped.Load() || c.callbacks.OnConnect == nil {
		return
	}
	c.callbacks.OnConnect(code)
}

func (c *Client) notifyDisconnect(err error) {
	if c.stopped.Load() || c.callbacks.OnDisconnect == nil {
		return
	}
	c.callbacks.OnDisconnect(err)
}

// handleMessage forwards an inbound message with panic recovery, so that a
// failing handler cannot take down paho's network goroutine.
func (c *Client) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	if c.stopped.Load() || c.callbacks.OnMessage == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}
	}()

	c.callbacks.OnMessage(msg.Topic(), msg.Payload(), msg.Qos(), msg.Retained())
}

package service

import (
	"sync"
	"time"

	"github.com/nerrad567/mqttservice/internal/dispatch"
	"github.com/nerrad567/mqttservice/internal/infrastructure/config"
	"github.com/nerrad567/mqttservice/internal/infrastructure/logging"
	"github.com/nerrad567/mqttservice/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqttservice/internal/metrics"
)

// eventQueueSize bounds transport events waiting for the supervisory goroutine.
const eventQueueSize = 16

type eventKind int

const (
	eventConnected eventKind = iota
	eventDisconnected
)

// event is a transport callback handed to the supervisory goroutine.
type event struct {
	kind eventKind
	gen  uint64 // handle generation that raised the event
	code byte   // connect result, 0 on success
	err  error  // disconnect cause, nil when requested
}

// SupervisorConfig holds the collaborators of a Supervisor.
type SupervisorConfig struct {
	Registry *dispatch.Registry

	// Subscriptions overrides the registered patterns as the set of topic
	// filters subscribed on connect. Each entry is prefixed with the base topic.
	Subscriptions []string

	// SubscribeQoS is the QoS requested for every subscription.
	SubscribeQoS byte

	Transport TransportFactory
	Hooks     Hooks
	Logger    *logging.Logger
	Metrics   *metrics.Metrics
}

// Supervisor owns the active connection handle.
//
// It decides when a configuration change requires a new handle, issues
// subscriptions on connect and publishes on behalf of handlers.
//
// Thread Safety:
//   - Apply, handleEvent and terminate must only be called from the
//     supervisory goroutine.
//   - Publish, State and the transport callbacks are safe from any goroutine.
type Supervisor struct {
	registry      *dispatch.Registry
	subscriptions []string
	subscribeQoS  byte
	factory       TransportFactory
	hooks         Hooks
	logger        *logging.Logger
	metrics       *metrics.Metrics

	events   chan event
	done     chan struct{}
	doneOnce sync.Once

	mu          sync.RWMutex
	transport   Transport
	settings    config.MQTTSettings // settings the active handle was built from
	generation  uint64
	retired     map[uint64]Transport // replaced handles awaiting disconnect
	state       ConnectionState
	terminating bool
	tornDown    bool
}

// NewSupervisor creates a Supervisor with no connection handle.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	s := &Supervisor{
		registry:      cfg.Registry,
		subscriptions: append([]string(nil), cfg.Subscriptions...),
		subscribeQoS:  cfg.SubscribeQoS,
		factory:       cfg.Transport,
		hooks:         cfg.Hooks,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		events:        make(chan event, eventQueueSize),
		done:          make(chan struct{}),
		retired:       make(map[uint64]Transport),
		state:         Disconnected,
	}

	if s.registry == nil {
		s.registry = dispatch.NewRegistry()
	}
	if s.hooks == nil {
		s.hooks = NopHooks{}
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.factory == nil {
		s.factory = MQTTTransport(s.logger)
	}
	return s
}

// State returns the current connection state.
func (s *Supervisor) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// BaseTopic returns the base topic of the active connection.
func (s *Supervisor) BaseTopic() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.BaseTopic
}

// Apply makes cfg the basis of the connection.
//
// When a handle exists and cfg has the same connection settings
// (broker, port, user, password, base topic) the handle is kept untouched.
// Otherwise the old handle is asked to disconnect and released, and a new
// handle is built and connected.
func (s *Supervisor) Apply(cfg *config.Config) {
	s.mu.Lock()

	if s.terminating {
		s.mu.Unlock()
		return
	}
	if s.transport != nil && s.settings.SameConnection(cfg.MQTT) {
		tuningChanged := !s.settings.SameTuning(cfg.MQTT)
		s.mu.Unlock()
		if tuningChanged {
			s.logger.Warn("MQTT client_id, tls or keepalive changed, applied on next reconnect",
				"client_id", cfg.MQTT.ClientID,
				"tls", cfg.MQTT.TLS,
				"keepalive", cfg.MQTT.KeepAlive,
			)
			return
		}
		s.logger.Debug("connection settings unchanged, keeping connection")
		return
	}

	if old := s.transport; old != nil {
		s.retired[s.generation] = old
		old.Disconnect()
		s.logger.Info("connection settings changed, reconnecting",
			"broker", cfg.MQTT.Broker,
			"port", cfg.MQTT.Port,
		)
	}

	s.generation++
	s.settings = cfg.MQTT
	s.transport = s.factory(cfg.MQTT, s.callbacks(s.generation))
	s.setStateLocked(Connecting)
	t := s.transport
	s.mu.Unlock()

	s.logger.Info("connecting to MQTT broker",
		"broker", cfg.MQTT.Broker,
		"port", cfg.MQTT.Port,
		"user", cfg.MQTT.UserName(),
	)
	if err := t.Connect(); err != nil {
		s.metrics.RecordConnect(false)
		s.logger.Error("MQTT connect failed",
			"broker", cfg.MQTT.Broker,
			"port", cfg.MQTT.Port,
			"error", err,
		)
	}
}

// callbacks binds transport callbacks to one handle generation.
func (s *Supervisor) callbacks(gen uint64) mqtt.Callbacks {
	return mqtt.Callbacks{
		OnConnect: func(code byte) {
			s.post(event{kind: eventConnected, gen: gen, code: code})
		},
		OnDisconnect: func(err error) {
			s.post(event{kind: eventDisconnected, gen: gen, err: err})
		},
		OnMessage: func(topic string, payload []byte, qos byte, retained bool) {
			s.onMessage(gen, topic, payload, qos, retained)
		},
	}
}

// post hands an event to the supervisory goroutine. Once the supervisor has
// stopped processing events they are dropped.
func (s *Supervisor) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// handleEvent processes one transport event on the supervisory goroutine.
func (s *Supervisor) handleEvent(ev event) {
	s.mu.Lock()
	if ev.gen != s.generation {
		stale, ok := s.retired[ev.gen]
		delete(s.retired, ev.gen)
		s.mu.Unlock()

		// A replaced handle is finished with as soon as it reports anything.
		if ok {
			stale.Stop()
		}
		return
	}

	switch ev.kind {
	case eventConnected:
		s.mu.Unlock()
		s.onConnected(ev.code)
	case eventDisconnected:
		notify := s.onDisconnectedLocked(ev.err)
		s.mu.Unlock()
		if notify {
			s.hooks.Disconnected()
		}
	default:
		s.mu.Unlock()
	}
}

func (s *Supervisor) onConnected(code byte) {
	s.mu.Lock()
	settings := s.settings
	t := s.transport
	if code != 0 {
		s.mu.Unlock()
		s.metrics.RecordConnect(false)
		s.logger.Error("MQTT connect failed",
			"broker", settings.Broker,
			"port", settings.Port,
			"code", code,
		)
		return
	}
	s.setStateLocked(Connected)
	s.mu.Unlock()

	s.metrics.RecordConnect(true)
	s.logger.Info("MQTT connected",
		"broker", settings.Broker,
		"port", settings.Port,
		"user", settings.UserName(),
	)

	for _, topic := range s.subscriptionTopics() {
		filter := settings.BaseTopic + topic
		if err := t.Subscribe(filter, s.subscribeQoS); err != nil {
			s.logger.Error("MQTT subscribe failed", "topic", filter, "error", err)
			continue
		}
		s.logger.Debug("MQTT subscribed", "topic", filter)
	}

	s.hooks.Connected()
}

// Subscriptions returns the topic filters issued on connect, without the
// base topic prefix.
func (s *Supervisor) Subscriptions() []string {
	return append([]string(nil), s.subscriptionTopics()...)
}

// subscriptionTopics returns the override list when one was configured,
// otherwise the distinct registered patterns.
func (s *Supervisor) subscriptionTopics() []string {
	if len(s.subscriptions) > 0 {
		return s.subscriptions
	}
	return s.registry.Patterns()
}

// onDisconnectedLocked updates the state for a disconnect event and reports
// whether the Disconnected hook should run. While terminating only the
// acknowledgment of the requested disconnect (err == nil) ends the teardown.
func (s *Supervisor) onDisconnectedLocked(err error) bool {
	switch {
	case s.terminating && err == nil:
		s.tornDown = true
		s.setStateLocked(Disconnected)
		s.logger.Info("MQTT disconnected")
	case s.terminating:
		s.logger.Warn("MQTT connection lost while disconnecting", "error", err)
		return false
	case err != nil:
		// paho re-establishes lost connections on its own.
		s.setStateLocked(Connecting)
		s.logger.Warn("MQTT connection lost",
			"broker", s.settings.Broker,
			"port", s.settings.Port,
			"error", err,
		)
	default:
		s.setStateLocked(Disconnected)
		s.logger.Info("MQTT disconnected")
	}
	return true
}

// onMessage runs on the transport goroutine.
func (s *Supervisor) onMessage(gen uint64, topic string, payload []byte, qos byte, retained bool) {
	s.mu.RLock()
	current := gen == s.generation
	baseTopic := s.settings.BaseTopic
	s.mu.RUnlock()

	if !current {
		return
	}

	s.logger.Debug("MQTT message received", "topic", topic, "bytes", len(payload))

	msg := dispatch.NewMessage(topic, payload, qos, retained)
	matched := s.registry.Dispatch(topic, msg, baseTopic)
	s.metrics.RecordMessage(matched)
}

// terminate disconnects the active handle and waits up to timeout for the
// acknowledgment, processing transport events meanwhile. Afterwards every
// handle is stopped, acknowledged or not.
//
// Returns:
//   - error: ErrShutdownTimeout if the wait expired, nil otherwise
func (s *Supervisor) terminate(timeout time.Duration) error {
	s.mu.Lock()
	s.terminating = true
	t := s.transport
	if t != nil {
		s.setStateLocked(Disconnecting)
	}
	s.mu.Unlock()

	var err error
	if t != nil {
		s.logger.Info("disconnecting from MQTT broker")
		t.Disconnect()
		err = s.awaitTeardown(timeout)
	}

	s.stopAll()
	return err
}

func (s *Supervisor) awaitTeardown(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for !s.isTornDown() {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
		case <-timer.C:
			s.logger.Warn("MQTT disconnect not acknowledged, forcing stop", "timeout", timeout)
			return ErrShutdownTimeout
		}
	}
	return nil
}

func (s *Supervisor) isTornDown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tornDown
}

// stopAll stops the active and every retired handle.
func (s *Supervisor) stopAll() {
	s.mu.Lock()
	handles := make([]Transport, 0, len(s.retired)+1)
	if s.transport != nil {
		handles = append(handles, s.transport)
	}
	for gen, t := range s.retired {
		handles = append(handles, t)
		delete(s.retired, gen)
	}
	s.transport = nil
	s.setStateLocked(Terminated)
	s.mu.Unlock()

	s.doneOnce.Do(func() { close(s.done) })

	for _, t := range handles {
		t.Stop()
	}
}

func (s *Supervisor) setStateLocked(state ConnectionState) {
	s.state = state
	s.metrics.SetConnectionState(int(state))
}

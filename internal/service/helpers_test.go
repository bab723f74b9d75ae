package service

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/mqttservice/internal/infrastructure/config"
	"github.com/nerrad567/mqttservice/internal/infrastructure/logging"
	"github.com/nerrad567/mqttservice/internal/infrastructure/mqtt"
)

// publishedMessage is one Publish call seen by a fakeTransport.
type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// fakeTransport is an in-memory connection handle. Connect and Disconnect
// report their outcome asynchronously, as paho does.
type fakeTransport struct {
	settings config.MQTTSettings
	cb       mqtt.Callbacks

	connectCode   byte
	ackDisconnect bool
	publishErr    error

	mu          sync.Mutex
	connects    int
	disconnects int
	stops       int
	stopped     bool
	subscribed  []string
	published   []publishedMessage
}

func (f *fakeTransport) Connect() error {
	f.mu.Lock()
	f.connects++
	code := f.connectCode
	f.mu.Unlock()

	go f.fireConnect(code)
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.disconnects++
	ack := f.ackDisconnect
	f.mu.Unlock()

	if ack {
		go f.fireDisconnect(nil)
	}
}

func (f *fakeTransport) Subscribe(topic string, _ byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, topic)
	return nil
}

func (f *fakeTransport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMessage{topic: topic, payload: payload, qos: qos, retained: retained})
	return nil
}

func (f *fakeTransport) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.stopped = true
}

func (f *fakeTransport) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *fakeTransport) fireConnect(code byte) {
	if !f.isStopped() {
		f.cb.OnConnect(code)
	}
}

func (f *fakeTransport) fireDisconnect(err error) {
	if !f.isStopped() {
		f.cb.OnDisconnect(err)
	}
}

// deliver simulates an inbound message on this handle.
func (f *fakeTransport) deliver(topic string, payload []byte) {
	if !f.isStopped() {
		f.cb.OnMessage(topic, payload, 0, false)
	}
}

func (f *fakeTransport) counts() (connects, disconnects, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects, f.stops
}

func (f *fakeTransport) subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subscribed...)
}

func (f *fakeTransport) publishes() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedMessage(nil), f.published...)
}

// fakeFactory records every handle it builds.
type fakeFactory struct {
	connectCode     byte
	noDisconnectAck bool

	mu         sync.Mutex
	transports []*fakeTransport
}

func (f *fakeFactory) build(settings config.MQTTSettings, cb mqtt.Callbacks) Transport {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTransport{
		settings:      settings,
		cb:            cb,
		connectCode:   f.connectCode,
		ackDisconnect: !f.noDisconnectAck,
	}
	f.transports = append(f.transports, t)
	return t
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transports)
}

func (f *fakeFactory) get(i int) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transports[i]
}

// hookRecorder records hook calls in order.
type hookRecorder struct {
	reject error

	mu    sync.Mutex
	calls []string
}

func (h *hookRecorder) record(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, name)
}

func (h *hookRecorder) ValidateConfiguration(*config.Config) error {
	h.record("validate")
	return h.reject
}

func (h *hookRecorder) ConfigurationReloading(*config.Config) { h.record("reloading") }
func (h *hookRecorder) ConfigurationReloaded(*config.Config)  { h.record("reloaded") }
func (h *hookRecorder) Connected()                            { h.record("connected") }
func (h *hookRecorder) Disconnected()                         { h.record("disconnected") }
func (h *hookRecorder) Shutdown()                             { h.record("shutdown") }

func (h *hookRecorder) count(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (h *hookRecorder) sequence() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// errorCount returns the number of ERROR records logged.
func (b *syncBuffer) errorCount() int {
	return strings.Count(b.String(), `"level":"ERROR"`)
}

func testLogger(buf *syncBuffer) *logging.Logger {
	return logging.NewWithWriter(buf, config.LoggingConfig{Level: "debug", Format: "json"}, "test", "test")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// drain processes n transport events the way Run would.
func drain(t *testing.T, s *Supervisor, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
}

func testConfig(broker, baseTopic string) *config.Config {
	return &config.Config{
		MQTT: config.MQTTSettings{Broker: broker, Port: 1883, BaseTopic: baseTopic},
		Document: config.Document{
			"mqtt": map[string]any{"broker": broker, "port": 1883, "basetopic": baseTopic},
		},
	}
}

var errPublish = errors.New("broker refused")

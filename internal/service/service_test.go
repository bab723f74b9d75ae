package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/mqttservice/internal/dispatch"
)

const baseConfig = `{
	"mqtt": {"broker": "broker-a", "port": 1883, "user": "svc", "password": "pw", "basetopic": "svc"},
	"echoservice": {"reply": "echoservice/reply"}
}`

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

// harness runs a Service against fake transports.
type harness struct {
	svc     *Service
	factory *fakeFactory
	hooks   *hookRecorder
	logs    *syncBuffer
	path    string

	cancel context.CancelFunc
	done   chan error
}

func newHarness(t *testing.T, content string, modify func(*Options)) *harness {
	t.Helper()
	return newHarnessFile(t, "echoservice.conf", content, modify)
}

// newHarnessFile is newHarness with a config file name, which selects the
// document format.
func newHarnessFile(t *testing.T, name, content string, modify func(*Options)) *harness {
	t.Helper()

	h := &harness{
		factory: &fakeFactory{},
		hooks:   &hookRecorder{},
		logs:    &syncBuffer{},
		path:    filepath.Join(t.TempDir(), name),
	}
	if content != "" {
		writeConfig(t, h.path, content)
	}

	opts := Options{
		Name:            "echoservice",
		ConfigPath:      h.path,
		Hooks:           h.hooks,
		Logger:          testLogger(h.logs),
		Transport:       h.factory.build,
		ShutdownTimeout: time.Second,
	}
	if modify != nil {
		modify(&opts)
	}
	h.svc = New(opts)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() { h.done <- h.svc.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
		}
	})
}

func (h *harness) stop(t *testing.T) error {
	t.Helper()

	h.cancel()
	select {
	case err := <-h.done:
		h.done <- err // let Cleanup see it
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
		return nil
	}
}

func (h *harness) waitConnected(t *testing.T, handles int) {
	t.Helper()
	waitFor(t, "connection", func() bool {
		// The Connected hook runs once subscriptions are issued.
		return h.factory.count() == handles &&
			h.svc.ConnectionState() == Connected &&
			h.hooks.count("connected") == handles
	})
}

func TestService_RunLifecycle(t *testing.T) {
	h := newHarness(t, baseConfig, nil)
	if _, err := h.svc.Register("echoservice/echo", func(string, *dispatch.Message) {}); err != nil {
		t.Fatal(err)
	}

	if h.svc.State() != StateStarting {
		t.Errorf("State() before Run = %v, want STARTING", h.svc.State())
	}

	h.start(t)
	h.waitConnected(t, 1)

	if h.svc.State() != StateRunning {
		t.Errorf("State() = %v, want RUNNING", h.svc.State())
	}
	if err := h.svc.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	cfg := h.svc.Config()
	if cfg == nil || cfg.MQTT.BaseTopic != "svc/" || cfg.MQTT.UserName() != "svc" {
		t.Fatalf("Config() = %+v", cfg)
	}
	if got := h.factory.get(0).subscriptions(); !reflect.DeepEqual(got, []string{"svc/echoservice/echo"}) {
		t.Errorf("subscriptions = %v", got)
	}

	if err := h.stop(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if h.svc.State() != StateStopped {
		t.Errorf("State() = %v, want STOPPED", h.svc.State())
	}
	if h.svc.ConnectionState() != Terminated {
		t.Errorf("ConnectionState() = %v, want TERMINATED", h.svc.ConnectionState())
	}
	if _, disconnects, stops := h.factory.get(0).counts(); disconnects != 1 || stops != 1 {
		t.Errorf("disconnects/stops = %d/%d, want 1/1", disconnects, stops)
	}

	want := []string{"validate", "reloading", "reloaded", "connected", "disconnected", "shutdown"}
	if got := h.hooks.sequence(); !reflect.DeepEqual(got, want) {
		t.Errorf("hooks = %v, want %v", got, want)
	}
}

func TestService_RunTwice(t *testing.T) {
	h := newHarness(t, baseConfig, nil)
	h.start(t)
	h.waitConnected(t, 1)

	if err := h.svc.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestService_ReloadUnchangedConnection(t *testing.T) {
	h := newHarness(t, baseConfig, nil)
	h.start(t)
	h.waitConnected(t, 1)

	first := h.svc.Config()
	writeConfig(t, h.path, strings.Replace(baseConfig, `"echoservice/reply"`, `"elsewhere"`, 1))
	h.svc.Reload()

	waitFor(t, "second reload", func() bool { return h.hooks.count("reloaded") == 2 })

	if h.factory.count() != 1 {
		t.Errorf("handles built = %d, want 1", h.factory.count())
	}
	if connects, disconnects, _ := h.factory.get(0).counts(); connects != 1 || disconnects != 0 {
		t.Errorf("connects/disconnects = %d/%d, want 1/0", connects, disconnects)
	}

	cfg := h.svc.Config()
	if cfg == first {
		t.Fatal("Config() not swapped")
	}
	var app struct {
		Reply string `json:"reply"`
	}
	if _, err := cfg.DecodeSection("echoservice", &app); err != nil || app.Reply != "elsewhere" {
		t.Errorf("echoservice section = %+v, %v", app, err)
	}
}

func TestService_ReloadChangedBroker(t *testing.T) {
	h := newHarness(t, baseConfig, nil)
	if _, err := h.svc.Register("echoservice/echo", func(string, *dispatch.Message) {}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Register("echoservice/version", func(string, *dispatch.Message) {}); err != nil {
		t.Fatal(err)
	}

	h.start(t)
	h.waitConnected(t, 1)

	writeConfig(t, h.path, strings.Replace(baseConfig, "broker-a", "broker-b", 1))
	h.svc.Reload()
	h.waitConnected(t, 2)

	old, current := h.factory.get(0), h.factory.get(1)
	waitFor(t, "old handle stopped", old.isStopped)

	if connects, disconnects, _ := old.counts(); connects != 1 || disconnects != 1 {
		t.Errorf("old connects/disconnects = %d/%d, want 1/1", connects, disconnects)
	}
	if connects, _, _ := current.counts(); connects != 1 {
		t.Errorf("new connects = %d, want 1", connects)
	}
	want := []string{"svc/echoservice/echo", "svc/echoservice/version"}
	if got := current.subscriptions(); !reflect.DeepEqual(got, want) {
		t.Errorf("resubscriptions = %v, want %v", got, want)
	}
}

func TestService_ReloadFailureKeepsConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, path string)
	}{
		{
			name:    "malformed document",
			prepare: func(t *testing.T, path string) { writeConfig(t, path, `{"mqtt": {"broker": `) },
		},
		{
			name:    "missing file",
			prepare: func(t *testing.T, path string) { _ = os.Remove(path) },
		},
		{
			name:    "missing broker",
			prepare: func(t *testing.T, path string) { writeConfig(t, path, `{"mqtt": {"port": 1883}}`) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, baseConfig, nil)
			h.start(t)
			h.waitConnected(t, 1)

			before := h.svc.Config()
			subsBefore := h.factory.get(0).subscriptions()

			tt.prepare(t, h.path)
			h.svc.Reload()

			waitFor(t, "rejection", func() bool { return h.logs.errorCount() > 0 })
			// One more round trip through the loop so a second log would show.
			h.svc.Reload()
			waitFor(t, "second rejection", func() bool { return h.logs.errorCount() > 1 })

			if got := h.logs.errorCount(); got != 2 {
				t.Errorf("rejections logged = %d, want one per reload (2)", got)
			}
			if h.svc.Config() != before {
				t.Error("active configuration replaced by a failed reload")
			}
			if h.factory.count() != 1 || h.svc.ConnectionState() != Connected {
				t.Errorf("connection disturbed: handles=%d state=%v", h.factory.count(), h.svc.ConnectionState())
			}
			if got := h.factory.get(0).subscriptions(); !reflect.DeepEqual(got, subsBefore) {
				t.Errorf("subscriptions changed: %v -> %v", subsBefore, got)
			}
			if h.hooks.count("reloading") != 1 {
				t.Errorf("pre-swap hook ran for a failed reload")
			}
		})
	}
}

func TestService_ValidationHookRejects(t *testing.T) {
	h := newHarness(t, baseConfig, nil)
	h.hooks.reject = errors.New("reply topic not allowed")

	h.start(t)
	waitFor(t, "rejection", func() bool { return h.logs.errorCount() == 1 })

	if h.svc.Config() != nil {
		t.Error("rejected configuration became active")
	}
	if h.factory.count() != 0 {
		t.Error("rejected configuration built a connection")
	}
	if !strings.Contains(h.logs.String(), "reply topic not allowed") {
		t.Error("rejection log lacks hook error")
	}
}

func TestService_NoConfigurationShutsDownImmediately(t *testing.T) {
	h := newHarness(t, "", nil)
	h.start(t)
	waitFor(t, "initial load failure", func() bool { return h.logs.errorCount() == 1 })

	if err := h.stop(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if h.factory.count() != 0 {
		t.Error("connection built without configuration")
	}
	if h.hooks.count("shutdown") != 1 {
		t.Error("Shutdown hook not called")
	}
}

func TestService_ShutdownTimeout(t *testing.T) {
	h := newHarness(t, baseConfig, func(o *Options) { o.ShutdownTimeout = 30 * time.Millisecond })
	h.factory.noDisconnectAck = true

	h.start(t)
	h.waitConnected(t, 1)

	if err := h.stop(t); !errors.Is(err, ErrShutdownTimeout) {
		t.Fatalf("Run() error = %v, want ErrShutdownTimeout", err)
	}
	if _, _, stops := h.factory.get(0).counts(); stops != 1 {
		t.Errorf("stops = %d, want forced stop", stops)
	}
	if h.hooks.count("shutdown") != 1 {
		t.Error("Shutdown hook not called after forced stop")
	}
}

func TestService_EnvOverridesCredentials(t *testing.T) {
	t.Setenv("ECHOSERVICE_MQTT_PASSWORD", "from-env")

	h := newHarness(t, baseConfig, nil)
	h.start(t)
	h.waitConnected(t, 1)

	pw := h.factory.get(0).settings.Password
	if pw == nil || *pw != "from-env" {
		t.Errorf("handle password = %v, want from-env", pw)
	}
}

const yamlConfig = `
mqtt:
  broker: broker-a
  port: 1883
  user: svc
  basetopic: svc
echoservice:
  reply: echoservice/reply
`

func TestService_YAMLConfigReload(t *testing.T) {
	t.Setenv("ECHOSERVICE_MQTT_PASSWORD", "from-env")

	h := newHarnessFile(t, "echoservice.yaml", yamlConfig, nil)
	h.start(t)
	h.waitConnected(t, 1)

	cfg := h.svc.Config()
	if cfg == nil || cfg.MQTT.Address() != "broker-a:1883" || cfg.MQTT.BaseTopic != "svc/" {
		t.Fatalf("Config() = %+v", cfg)
	}
	if pw := h.factory.get(0).settings.Password; pw == nil || *pw != "from-env" {
		t.Errorf("handle password = %v, want from-env", pw)
	}

	writeConfig(t, h.path, strings.Replace(yamlConfig, "broker-a", "broker-b", 1))
	h.svc.Reload()
	h.waitConnected(t, 2)

	if got := h.factory.get(1).settings.Broker; got != "broker-b" {
		t.Errorf("new handle broker = %q, want broker-b", got)
	}
	if got := h.svc.Config().MQTT.Broker; got != "broker-b" {
		t.Errorf("Config().MQTT.Broker = %q, want broker-b", got)
	}
	if strings.Contains(h.logs.String(), "configuration rejected") {
		t.Errorf("YAML configuration rejected:\n%s", h.logs.String())
	}
}

func TestService_HandlerPublishesReply(t *testing.T) {
	h := newHarness(t, baseConfig, nil)
	_, err := h.svc.Register("echoservice/echo", func(_ string, msg *dispatch.Message) {
		h.svc.Publish("echoservice/reply", msg.Payload.Value())
	})
	if err != nil {
		t.Fatal(err)
	}

	h.start(t)
	h.waitConnected(t, 1)

	h.factory.get(0).deliver("svc/echoservice/echo", []byte(`{"x":1}`))

	got := h.factory.get(0).publishes()
	if len(got) != 1 || got[0].topic != "svc/echoservice/reply" || string(got[0].payload) != `{"x":1}` {
		t.Errorf("published = %+v", got)
	}
}

func TestService_RegisterAndRemove(t *testing.T) {
	h := newHarness(t, baseConfig, nil)

	var calls []string
	first, err := h.svc.Register("a/+", func(string, *dispatch.Message) { calls = append(calls, "first") })
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Register("a/#", func(string, *dispatch.Message) { calls = append(calls, "second") }); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Register("a/#/b"); !errors.Is(err, dispatch.ErrInvalidPattern) {
		t.Errorf("Register(a/#/b) error = %v, want ErrInvalidPattern", err)
	}

	h.start(t)
	h.waitConnected(t, 1)

	h.factory.get(0).deliver("svc/a/x", nil)
	h.svc.Remove(first)
	h.factory.get(0).deliver("svc/a/x", nil)

	want := []string{"first", "second", "second"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestService_ReloadCoalesces(t *testing.T) {
	svc := New(Options{})
	for i := 0; i < 5; i++ {
		svc.Reload()
	}
	if len(svc.reload) != 1 {
		t.Errorf("pending reloads = %d, want 1", len(svc.reload))
	}
}

func TestService_HealthCheckBeforeRun(t *testing.T) {
	svc := New(Options{})
	if err := svc.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

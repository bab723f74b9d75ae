package echo

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nerrad567/mqttservice/internal/dispatch"
	"github.com/nerrad567/mqttservice/internal/infrastructure/config"
	"github.com/nerrad567/mqttservice/internal/service"
)

type published struct {
	topic   string
	payload any
}

// fakeHost routes through a real registry and records publishes.
type fakeHost struct {
	*dispatch.Registry

	mu        sync.Mutex
	published []published
}

func newFakeHost() *fakeHost {
	return &fakeHost{Registry: dispatch.NewRegistry()}
}

func (h *fakeHost) Publish(topic string, payload any, _ ...service.PublishOption) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.published = append(h.published, published{topic: topic, payload: payload})
}

func (h *fakeHost) deliver(topic string, raw []byte) int {
	return h.Dispatch(topic, dispatch.NewMessage(topic, raw, 0, false), "")
}

func (h *fakeHost) publishes() []published {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]published(nil), h.published...)
}

func configWith(section map[string]any) *config.Config {
	doc := config.Document{
		"mqtt": map[string]any{"broker": "localhost", "port": 1883, "basetopic": ""},
	}
	if section != nil {
		doc[SectionName] = section
	}
	return &config.Config{
		MQTT:     config.MQTTSettings{Broker: "localhost", Port: 1883},
		Document: doc,
	}
}

// reload runs the reload hooks the way the service does.
func reload(t *testing.T, s *Service, cfg *config.Config) {
	t.Helper()
	if err := s.ValidateConfiguration(cfg); err != nil {
		t.Fatalf("ValidateConfiguration() error = %v", err)
	}
	s.ConfigurationReloading(cfg)
	s.ConfigurationReloaded(cfg)
}

func attached(t *testing.T) (*Service, *fakeHost) {
	t.Helper()
	s := New("echoservice", "1.2.3", nil)
	host := newFakeHost()
	if err := s.Attach(host); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	t.Cleanup(s.Shutdown)
	return s, host
}

func TestAttachRegistersPatterns(t *testing.T) {
	_, host := attached(t)

	want := map[string]bool{TopicEcho: true, TopicVersion: true, TopicEchoN: true}
	patterns := host.Patterns()
	if len(patterns) != len(want) {
		t.Fatalf("Patterns() = %v", patterns)
	}
	for _, p := range patterns {
		if !want[p] {
			t.Errorf("unexpected pattern %q", p)
		}
	}
}

func TestEchoReply(t *testing.T) {
	_, host := attached(t)

	if n := host.deliver(TopicEcho, []byte(`{"x":1}`)); n != 1 {
		t.Fatalf("Dispatch() matched %d, want 1", n)
	}

	got := host.publishes()
	if len(got) != 1 {
		t.Fatalf("published %d messages, want 1", len(got))
	}
	if got[0].topic != DefaultReplyTopic {
		t.Errorf("reply topic = %q, want %q", got[0].topic, DefaultReplyTopic)
	}
	reply, ok := got[0].payload.(Reply)
	if !ok {
		t.Fatalf("payload type = %T, want Reply", got[0].payload)
	}
	obj, ok := reply.Payload.(map[string]any)
	if !ok || obj["x"] != float64(1) || !reply.Structured {
		t.Errorf("reply = %+v", reply)
	}
}

func TestEchoReplyRawPayload(t *testing.T) {
	_, host := attached(t)

	host.deliver(TopicEcho, []byte("not json"))

	reply := host.publishes()[0].payload.(Reply)
	if reply.Structured || reply.Payload != "not json" {
		t.Errorf("reply = %+v, want raw string payload", reply)
	}
}

func TestVersionReply(t *testing.T) {
	tests := []string{TopicVersion, "echoservice/echon/a", "echoservice/echon/a/b", "echoservice/echon"}

	for _, topic := range tests {
		t.Run(topic, func(t *testing.T) {
			_, host := attached(t)
			host.deliver(topic, nil)

			got := host.publishes()
			if len(got) != 1 {
				t.Fatalf("published %d messages, want 1", len(got))
			}
			info, ok := got[0].payload.(VersionInfo)
			if !ok || info.Service != "echoservice" || info.Version != "1.2.3" {
				t.Errorf("payload = %#v", got[0].payload)
			}
		})
	}
}

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		section map[string]any
		wantErr bool
	}{
		{"no section uses defaults", nil, false},
		{"custom reply topic", map[string]any{"reply_topic": "out/reply"}, false},
		{"wildcard reply topic", map[string]any{"reply_topic": "out/+"}, true},
		{"empty reply topic", map[string]any{"reply_topic": ""}, true},
		{"wrong type", map[string]any{"reply_topic": 5}, true},
		{"influx without url", map[string]any{"influxdb": map[string]any{"enabled": true, "org": "o", "bucket": "b"}}, true},
		{"influx disabled without url", map[string]any{"influxdb": map[string]any{"enabled": false}}, false},
		{"influx complete", map[string]any{"influxdb": map[string]any{
			"enabled": true, "url": "http://127.0.0.1:8086", "org": "o", "bucket": "b",
		}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("echoservice", "test", nil)
			err := s.ValidateConfiguration(configWith(tt.section))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateConfiguration() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("error = %v, want ErrInvalidSettings", err)
			}
		})
	}
}

func TestReloadChangesReplyTopic(t *testing.T) {
	s, host := attached(t)

	reload(t, s, configWith(map[string]any{"reply_topic": "custom/reply"}))
	host.deliver(TopicVersion, nil)

	if got := host.publishes()[0].topic; got != "custom/reply" {
		t.Errorf("reply topic = %q, want custom/reply", got)
	}
}

func TestReloadingWithoutReloadedKeepsSettings(t *testing.T) {
	s, _ := attached(t)

	s.ConfigurationReloading(configWith(map[string]any{"reply_topic": "staged"}))
	if got := s.Settings().ReplyTopic; got != DefaultReplyTopic {
		t.Errorf("ReplyTopic = %q before ConfigurationReloaded", got)
	}
}

func TestJournalRecordsMessages(t *testing.T) {
	s, host := attached(t)
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	reload(t, s, configWith(map[string]any{
		"database": map[string]any{"path": dbPath, "wal_mode": true},
	}))

	journal := s.Journal()
	if journal == nil {
		t.Fatal("Journal() = nil after configuring a database")
	}
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	host.deliver(TopicEcho, []byte(`{"x":1}`))
	host.deliver(TopicEcho, []byte("plain"))

	ctx := context.Background()
	n, err := journal.Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Count() = %d, %v; want 2", n, err)
	}

	entries, err := journal.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if entries[0].Structured || string(entries[0].Payload) != "plain" {
		t.Errorf("newest entry = %+v", entries[0])
	}
	if !entries[1].Structured || entries[1].Topic != TopicEcho || entries[1].ReceivedAt.IsZero() {
		t.Errorf("oldest entry = %+v", entries[1])
	}

	// Same settings keep the journal open.
	reload(t, s, configWith(map[string]any{
		"database": map[string]any{"path": dbPath, "wal_mode": true},
	}))
	if s.Journal() != journal {
		t.Error("unchanged database settings reopened the journal")
	}

	// Removing the database closes it.
	reload(t, s, configWith(nil))
	if s.Journal() != nil {
		t.Error("journal still open after database removed")
	}
	if err := journal.HealthCheck(ctx); err == nil {
		t.Error("old journal still answers after close")
	}
}

func TestShutdownClosesJournal(t *testing.T) {
	s, _ := attached(t)
	reload(t, s, configWith(map[string]any{
		"database": map[string]any{"path": filepath.Join(t.TempDir(), "journal.db")},
	}))

	journal := s.Journal()
	s.Shutdown()

	if s.Journal() != nil {
		t.Error("Journal() not cleared by Shutdown")
	}
	if err := journal.HealthCheck(context.Background()); err == nil {
		t.Error("journal still open after Shutdown")
	}
}

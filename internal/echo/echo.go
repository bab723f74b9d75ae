package echo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/mqttservice/internal/dispatch"
	"github.com/nerrad567/mqttservice/internal/infrastructure/config"
	"github.com/nerrad567/mqttservice/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqttservice/internal/infrastructure/logging"
	"github.com/nerrad567/mqttservice/internal/service"
)

// Topic patterns handled by the echo service, relative to the base topic.
const (
	TopicEcho    = "echoservice/echo"
	TopicVersion = "echoservice/version"
	TopicEchoN   = "echoservice/echon/#"
)

// storageTimeout bounds journal and InfluxDB setup and each journal write.
const storageTimeout = 5 * time.Second

// Host is what the echo service needs from the running service.
// *service.Service implements it.
type Host interface {
	Register(pattern string, handlers ...dispatch.Handler) (dispatch.ID, error)
	Publish(topic string, payload any, opts ...service.PublishOption)
}

// Reply is published for every echo request.
type Reply struct {
	Topic      string `json:"topic"`
	Payload    any    `json:"payload"`
	Structured bool   `json:"structured"`
}

// VersionInfo is published for version requests.
type VersionInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

// Service is the echo sample service. It implements service.Hooks.
//
// Thread Safety:
//   - Handlers run on the transport goroutine while hooks run on the
//     supervisory goroutine; shared state is guarded by mu.
type Service struct {
	name    string
	version string
	logger  *logging.Logger
	host    Host
	now     func() time.Time

	mu       sync.RWMutex
	settings Settings
	pending  *Settings
	journal  *Journal
	influx   *influxdb.Client
}

var _ service.Hooks = (*Service)(nil)

// New creates the echo service. A nil logger discards output.
func New(name, version string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		name:     name,
		version:  version,
		logger:   logger,
		now:      time.Now,
		settings: Settings{ReplyTopic: DefaultReplyTopic},
	}
}

// Attach registers the echo handlers on host and publishes through it.
func (s *Service) Attach(host Host) error {
	s.host = host

	routes := []struct {
		pattern string
		handler dispatch.Handler
	}{
		{TopicEcho, s.handleEcho},
		{TopicVersion, s.handleVersion},
		{TopicEchoN, s.handleVersion},
	}
	for _, r := range routes {
		if _, err := host.Register(r.pattern, r.handler); err != nil {
			return fmt.Errorf("registering %s: %w", r.pattern, err)
		}
	}
	return nil
}

// Settings returns the active settings.
func (s *Service) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Journal returns the open journal, or nil when none is configured.
func (s *Service) Journal() *Journal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.journal
}

// HealthCheck checks the journal and InfluxDB when they are in use.
func (s *Service) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	journal, influx := s.journal, s.influx
	s.mu.RUnlock()

	if journal != nil {
		if err := journal.HealthCheck(ctx); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}
	if influx != nil {
		if err := influx.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

func (s *Service) handleEcho(topic string, msg *dispatch.Message) {
	s.logger.Debug("received echo request", "topic", topic)
	s.record(topic, "echo", msg)

	reply := Reply{Topic: topic, Structured: msg.Payload.IsStructured()}
	if value, ok := msg.Payload.Structured(); ok {
		reply.Payload = value
	} else {
		reply.Payload = string(msg.Payload.Raw())
	}
	s.publish(reply)
}

func (s *Service) handleVersion(topic string, msg *dispatch.Message) {
	s.logger.Debug("received version query", "topic", topic)
	s.record(topic, "version", msg)
	s.publish(VersionInfo{Service: s.name, Version: s.version})
}

func (s *Service) publish(payload any) {
	if s.host == nil {
		return
	}
	s.host.Publish(s.Settings().ReplyTopic, payload)
}

// record writes msg to the journal and InfluxDB when configured. Failures
// are logged; the reply is still sent.
func (s *Service) record(topic, handler string, msg *dispatch.Message) {
	s.mu.RLock()
	journal, influx := s.journal, s.influx
	s.mu.RUnlock()

	if journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		err := journal.Record(ctx, topic, msg.Payload, s.now())
		cancel()
		if err != nil {
			s.logger.Error("journal write failed", "topic", topic, "error", err)
		}
	}
	if influx != nil {
		influx.WriteMessage(msg.Topic, handler, len(msg.Payload.Raw()))
	}
}

// ValidateConfiguration rejects a malformed echoservice section.
func (s *Service) ValidateConfiguration(cfg *config.Config) error {
	_, err := settingsFrom(cfg)
	return err
}

// ConfigurationReloading stages the settings of the accepted configuration.
func (s *Service) ConfigurationReloading(next *config.Config) {
	settings, err := settingsFrom(next)
	if err != nil {
		// Already validated; only reachable if the document changed under us.
		s.logger.Error("echo settings rejected", "error", err)
		return
	}

	s.mu.Lock()
	s.pending = &settings
	s.mu.Unlock()
}

// ConfigurationReloaded activates the staged settings, reopening the
// journal and InfluxDB client when their sections changed.
func (s *Service) ConfigurationReloaded(*config.Config) {
	s.mu.Lock()
	next := s.pending
	s.pending = nil
	if next == nil {
		s.mu.Unlock()
		return
	}
	prev := s.settings
	s.settings = *next
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()

	if next.Database != prev.Database || (s.Journal() == nil && next.Database.Path != "") {
		s.reopenJournal(ctx, next.Database)
	}
	if next.InfluxDB != prev.InfluxDB {
		s.reconnectInflux(ctx, next.InfluxDB)
	}

	s.logger.Info("echo settings applied",
		"reply_topic", next.ReplyTopic,
		"journal", next.Database.Path,
		"influxdb", next.InfluxDB.Enabled,
	)
}

func (s *Service) reopenJournal(ctx context.Context, cfg config.DatabaseConfig) {
	var journal *Journal
	if cfg.Path != "" {
		var err error
		journal, err = OpenJournal(ctx, cfg)
		if err != nil {
			s.logger.Error("journal unavailable", "path", cfg.Path, "error", err)
		} else {
			s.logger.Info("journal opened", "path", cfg.Path)
		}
	}

	s.mu.Lock()
	old := s.journal
	s.journal = journal
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			s.logger.Error("error closing journal", "error", err)
		}
	}
}

func (s *Service) reconnectInflux(ctx context.Context, cfg config.InfluxDBConfig) {
	var client *influxdb.Client
	if cfg.Enabled {
		var err error
		client, err = influxdb.Connect(ctx, cfg)
		if err != nil {
			s.logger.Error("InfluxDB unavailable", "url", cfg.URL, "error", err)
		} else {
			client.SetOnError(func(err error) {
				s.logger.Error("InfluxDB write error", "error", err)
			})
			s.logger.Info("InfluxDB connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
		}
	}

	s.mu.Lock()
	old := s.influx
	s.influx = client
	s.mu.Unlock()

	if old != nil {
		old.Close() //nolint:errcheck // Close never fails
	}
}

// Connected logs readiness.
func (s *Service) Connected() {
	s.logger.Info("echo service ready", "reply_topic", s.Settings().ReplyTopic)
}

// Disconnected is a no-op; the supervisor logs connection changes.
func (s *Service) Disconnected() {}

// Shutdown closes the journal and flushes InfluxDB.
func (s *Service) Shutdown() {
	s.mu.Lock()
	journal, influx := s.journal, s.influx
	s.journal, s.influx = nil, nil
	s.mu.Unlock()

	if influx != nil {
		s.logger.Info("closing InfluxDB connection")
		influx.Close() //nolint:errcheck // Close never fails
	}
	if journal != nil {
		s.logger.Info("closing journal")
		if err := journal.Close(); err != nil {
			s.logger.Error("error closing journal", "error", err)
		}
	}
}

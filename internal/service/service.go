package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/mqttservice/internal/dispatch"
	"github.com/nerrad567/mqttservice/internal/infrastructure/config"
	"github.com/nerrad567/mqttservice/internal/infrastructure/logging"
	"github.com/nerrad567/mqttservice/internal/metrics"
)

// DefaultShutdownTimeout bounds the wait for the broker to acknowledge the
// final disconnect.
const DefaultShutdownTimeout = 10 * time.Second

// Options configures a Service.
type Options struct {
	// Name identifies the service in logs. It is also the prefix of the
	// credential environment overrides (NAME_MQTT_USER, NAME_MQTT_PASSWORD).
	Name string

	// ConfigPath is re-read on every reload.
	ConfigPath string

	// Subscriptions, when non-empty, replaces the registered patterns as the
	// topic filters subscribed on connect.
	Subscriptions []string

	// SubscribeQoS is the QoS requested for subscriptions.
	SubscribeQoS byte

	// Hooks receives lifecycle callbacks. Defaults to NopHooks.
	Hooks Hooks

	// Logger defaults to a discarding logger.
	Logger *logging.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Transport builds connection handles. Defaults to paho.
	Transport TransportFactory

	// ShutdownTimeout defaults to DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
}

// Service runs the reload/shutdown control loop of an MQTT service.
//
// Thread Safety:
//   - Register, Remove, Publish, Reload, Config, State and HealthCheck are
//     safe for concurrent use, including from handlers.
//   - Run must be called once.
type Service struct {
	name            string
	configPath      string
	hooks           Hooks
	logger          *logging.Logger
	metrics         *metrics.Metrics
	shutdownTimeout time.Duration

	registry   *dispatch.Registry
	supervisor *Supervisor
	validator  config.Validator

	// reload is a one-slot flag: requests made while one is pending coalesce.
	reload  chan struct{}
	state   atomic.Int32
	started atomic.Bool

	cfgMu sync.RWMutex
	cfg   *config.Config
}

// New creates a Service in the STARTING state. Nothing is loaded or
// connected until Run.
func New(opts Options) *Service {
	if opts.Hooks == nil {
		opts.Hooks = NopHooks{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	registry := dispatch.NewRegistry()

	s := &Service{
		name:            opts.Name,
		configPath:      opts.ConfigPath,
		hooks:           opts.Hooks,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		shutdownTimeout: opts.ShutdownTimeout,
		registry:        registry,
		reload:          make(chan struct{}, 1),
	}

	s.supervisor = NewSupervisor(SupervisorConfig{
		Registry:      registry,
		Subscriptions: opts.Subscriptions,
		SubscribeQoS:  opts.SubscribeQoS,
		Transport:     opts.Transport,
		Hooks:         opts.Hooks,
		Logger:        opts.Logger.With("component", "supervisor"),
		Metrics:       opts.Metrics,
	})

	s.validator = config.Validator{
		Logger: opts.Logger,
		Check:  opts.Hooks.ValidateConfiguration,
	}

	s.state.Store(int32(StateStarting))
	return s
}

// Register adds handlers for a topic pattern relative to the base topic.
// Patterns registered while connected are dispatched immediately but only
// subscribed at the next connect.
func (s *Service) Register(pattern string, handlers ...dispatch.Handler) (dispatch.ID, error) {
	return s.registry.Register(pattern, handlers...)
}

// Remove deletes a registration. Unknown ids are ignored.
func (s *Service) Remove(id dispatch.ID) {
	s.registry.Remove(id)
}

// Patterns returns the distinct registered patterns, which are the topics
// subscribed on connect unless Options.Subscriptions overrides them.
func (s *Service) Patterns() []string {
	return s.registry.Patterns()
}

// Subscriptions returns the topic filters subscribed on connect, relative to
// the base topic: Options.Subscriptions when set, otherwise Patterns.
func (s *Service) Subscriptions() []string {
	return s.supervisor.Subscriptions()
}

// Publish sends a message through the active connection. See
// Supervisor.Publish for payload encoding and failure behaviour.
func (s *Service) Publish(topic string, payload any, opts ...PublishOption) {
	s.supervisor.Publish(topic, payload, opts...)
}

// Reload requests a configuration reload. It never blocks; requests made
// while one is already pending are merged.
func (s *Service) Reload() {
	select {
	case s.reload <- struct{}{}:
	default:
	}
}

// Config returns the active configuration, or nil before the first
// successful load.
func (s *Service) Config() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// State returns the lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// ConnectionState returns the broker connection state.
func (s *Service) ConnectionState() ConnectionState {
	return s.supervisor.State()
}

// HealthCheck reports whether the service is running and connected.
func (s *Service) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("service health check: %w", ctx.Err())
	default:
	}

	if state := s.State(); state != StateRunning {
		return fmt.Errorf("%w: service %s", ErrNotConnected, state)
	}
	if state := s.ConnectionState(); state != Connected {
		return fmt.Errorf("%w: connection %s", ErrNotConnected, state)
	}
	return nil
}

// Run loads the configuration, connects and serves until ctx is cancelled,
// then shuts down.
//
// The loop blocks until one of three things happens: a reload request,
// a transport event, or cancellation. A failed reload keeps the previous
// configuration and is not retried until the next Reload.
//
// Returns:
//   - error: ErrAlreadyRunning, ErrShutdownTimeout, or nil on a clean shutdown
func (s *Service) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	s.state.Store(int32(StateRunning))
	s.logger.Info("service starting", "name", s.name, "config", s.configPath)

	s.Reload()

	for {
		select {
		case <-ctx.Done():
			return s.shutdown()

		case <-s.reload:
			if ctx.Err() != nil {
				continue
			}
			s.reloadConfiguration()

		case ev := <-s.supervisor.events:
			s.supervisor.handleEvent(ev)
		}
	}
}

// reloadConfiguration runs one reload attempt.
func (s *Service) reloadConfiguration() {
	s.logger.Info("loading configuration", "path", s.configPath)

	doc, err := config.Load(s.configPath)
	if err != nil {
		result := metrics.ReloadReadError
		if errors.Is(err, config.ErrConfigParse) {
			result = metrics.ReloadParseError
		}
		s.reject(result, err)
		return
	}

	config.ApplyEnvOverrides(doc, s.name)

	cfg, err := s.validator.Validate(doc)
	if err != nil {
		s.reject(metrics.ReloadRejected, err)
		return
	}

	s.hooks.ConfigurationReloading(cfg)

	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()

	s.supervisor.Apply(cfg)
	s.hooks.ConfigurationReloaded(cfg)

	s.metrics.RecordReload(metrics.ReloadApplied)
	s.logger.Info("configuration applied", "path", s.configPath)
}

func (s *Service) reject(result string, err error) {
	s.metrics.RecordReload(result)
	s.logger.Error("configuration rejected, keeping previous configuration",
		"path", s.configPath,
		"error", err,
	)
}

// shutdown disconnects, stops the transport and runs the Shutdown hook.
func (s *Service) shutdown() error {
	s.state.Store(int32(StateStopping))
	s.logger.Info("service stopping")

	err := s.supervisor.terminate(s.shutdownTimeout)

	s.hooks.Shutdown()
	s.state.Store(int32(StateStopped))
	s.logger.Info("service stopped")
	return err
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/mqttservice/internal/infrastructure/config"
	"github.com/nerrad567/mqttservice/internal/infrastructure/logging"
	"github.com/nerrad567/mqttservice/internal/metrics"
	"github.com/nerrad567/mqttservice/internal/service"
)

// Server timeouts.
const (
	gracefulShutdownTimeout = 5 * time.Second
	readTimeout             = 10 * time.Second
	writeTimeout            = 10 * time.Second
	idleTimeout             = 60 * time.Second
)

// ServiceControl is the part of service.Service the server needs.
type ServiceControl interface {
	State() service.State
	ConnectionState() service.ConnectionState
	Config() *config.Config
	Patterns() []string
	Subscriptions() []string
	Reload()
	HealthCheck(ctx context.Context) error
}

// ErrNoJournal is returned by a JournalSource that has no journal configured.
var ErrNoJournal = errors.New("no journal configured")

// JournalRecord is one journaled message.
type JournalRecord struct {
	ID         int64
	Topic      string
	Payload    []byte
	Structured bool
	ReceivedAt time.Time
}

// JournalSource lists recently journaled messages, newest first.
type JournalSource interface {
	RecentJournal(ctx context.Context, limit int) ([]JournalRecord, error)
}

// HealthChecker is an additional dependency checked by /healthz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the admin server.
type Deps struct {
	// Addr is the listen address, e.g. "127.0.0.1:9100".
	Addr    string
	Logger  *logging.Logger
	Service ServiceControl
	Metrics *metrics.Metrics

	// Journal is optional; without it /api/v1/journal answers 404.
	Journal JournalSource

	// Checks are consulted by /healthz after the service itself.
	Checks []HealthChecker

	Version string
}

// Server is the admin HTTP server.
type Server struct {
	addr    string
	logger  *logging.Logger
	service ServiceControl
	metrics *metrics.Metrics
	journal JournalSource
	checks  []HealthChecker
	version string
	started time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates the server. It does not listen until Start.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Service == nil {
		return nil, fmt.Errorf("service is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}

	return &Server{
		addr:    deps.Addr,
		logger:  deps.Logger,
		service: deps.Service,
		metrics: deps.Metrics,
		journal: deps.Journal,
		checks:  deps.Checks,
		version: deps.Version,
		started: time.Now(),
	}, nil
}

// Start binds the listen address and serves in a background goroutine.
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("admin server listening", "address", ln.Addr().String())

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close waits up to 5 seconds for in-flight requests, then closes.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("admin server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down admin server: %w", err)
	}
	return nil
}

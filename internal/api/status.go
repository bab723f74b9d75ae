package api

import (
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"
)

// bytesPerMB converts byte counts to megabytes.
const bytesPerMB = 1024 * 1024

// Journal listing limits.
const (
	defaultJournalLimit = 20
	maxJournalLimit     = 500
)

// Status is the /api/v1/status document.
type Status struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	State         string         `json:"state"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Runtime       RuntimeMetrics `json:"runtime"`
}

// MQTTStatus describes the broker connection.
type MQTTStatus struct {
	State     string `json:"state"`
	Broker    string `json:"broker,omitempty"`
	BaseTopic string `json:"base_topic,omitempty"`
	User      string `json:"user,omitempty"`

	// Patterns are the registered handler patterns, Subscriptions the
	// topic filters actually subscribed. Both are relative to BaseTopic.
	Patterns      []string `json:"patterns"`
	Subscriptions []string `json:"subscriptions"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// JournalEntry is one row of /api/v1/journal.
type JournalEntry struct {
	ID         int64  `json:"id"`
	Topic      string `json:"topic"`
	Payload    string `json:"payload"`
	Structured bool   `json:"structured"`
	ReceivedAt string `json:"received_at"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	status := Status{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		State:         s.service.State().String(),
		MQTT: MQTTStatus{
			State:         s.service.ConnectionState().String(),
			Patterns:      s.service.Patterns(),
			Subscriptions: s.service.Subscriptions(),
		},
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / bytesPerMB,
			NumGC:         mem.NumGC,
		},
	}
	if cfg := s.service.Config(); cfg != nil {
		status.MQTT.Broker = cfg.MQTT.Address()
		status.MQTT.BaseTopic = cfg.MQTT.BaseTopic
		status.MQTT.User = cfg.MQTT.UserName()
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeNotFound(w, ErrNoJournal.Error())
		return
	}

	limit := defaultJournalLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxJournalLimit {
			writeBadRequest(w, "limit must be between 1 and "+strconv.Itoa(maxJournalLimit))
			return
		}
		limit = n
	}

	entries, err := s.journal.RecentJournal(r.Context(), limit)
	if errors.Is(err, ErrNoJournal) {
		writeNotFound(w, ErrNoJournal.Error())
		return
	}
	if err != nil {
		s.logger.Error("reading journal failed", "error", err)
		writeInternalError(w, "reading journal failed")
		return
	}

	out := make([]JournalEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, JournalEntry{
			ID:         e.ID,
			Topic:      e.Topic,
			Payload:    string(e.Payload),
			Structured: e.Structured,
			ReceivedAt: e.ReceivedAt.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

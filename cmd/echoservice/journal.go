package main

import (
	"context"

	"github.com/nerrad567/mqttservice/internal/api"
	"github.com/nerrad567/mqttservice/internal/echo"
)

// journalSource exposes the echo journal to the admin server.
type journalSource struct {
	svc *echo.Service
}

func (j journalSource) RecentJournal(ctx context.Context, limit int) ([]api.JournalRecord, error) {
	journal := j.svc.Journal()
	if journal == nil {
		return nil, api.ErrNoJournal
	}

	entries, err := journal.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]api.JournalRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, api.JournalRecord{
			ID:         e.ID,
			Topic:      e.Topic,
			Payload:    e.Payload,
			Structured: e.Structured,
			ReceivedAt: e.ReceivedAt,
		})
	}
	return out, nil
}

package echo

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/mqttservice/internal/dispatch"
	"github.com/nerrad567/mqttservice/internal/infrastructure/config"
	"github.com/nerrad567/mqttservice/internal/infrastructure/database"
	"github.com/nerrad567/mqttservice/migrations"
)

// Entry is one journaled message.
type Entry struct {
	ID         int64
	Topic      string
	Payload    []byte
	Structured bool
	ReceivedAt time.Time
}

// Journal appends handled messages to the echo_journal table.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Journal struct {
	db *database.DB
}

// OpenJournal opens the database and brings its schema up to date.
func OpenJournal(ctx context.Context, cfg config.DatabaseConfig) (*Journal, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("migrating journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record appends a message.
func (j *Journal) Record(ctx context.Context, topic string, payload dispatch.Payload, at time.Time) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO echo_journal (topic, payload, structured, received_at) VALUES (?, ?, ?, ?)",
		topic,
		payload.Raw(),
		payload.IsStructured(),
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", topic, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT id, topic, payload, structured, received_at FROM echo_journal ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var receivedAt string
		if err := rows.Scan(&e.ID, &e.Topic, &e.Payload, &e.Structured, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		e.ReceivedAt, _ = time.Parse(time.RFC3339Nano, receivedAt) //nolint:errcheck // Written by Record
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of journaled messages.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM echo_journal").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting journal: %w", err)
	}
	return n, nil
}

// HealthCheck verifies the journal database answers.
func (j *Journal) HealthCheck(ctx context.Context) error {
	return j.db.HealthCheck(ctx)
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

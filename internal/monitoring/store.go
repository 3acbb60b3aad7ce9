// Package monitoring - store.go persists request events to SQLite.
//
// DESIGN: The store is an optional durable sink alongside the JSONL log. It
// uses WAL mode with a single writer connection, which is all a
// single-instance gateway needs, and keeps one prepared insert statement hot.
// Queries are for offline analysis (recent events, per-day counts), not for
// the request path.
package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store persists request events to a SQLite database.
type Store struct {
	db         *sql.DB
	insertStmt *sql.Stmt
}

// NewStore opens (or creates) the event database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		dbPath, int((5 * time.Second).Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if s.insertStmt, err = db.Prepare(`
		INSERT INTO request_events (
			request_id, timestamp, client_ip, status_code,
			request_body_size, response_body_size,
			entities, lookups, lookup_failures,
			enriched, success, error, total_latency_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS request_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		client_ip TEXT,
		status_code INTEGER NOT NULL,
		request_body_size INTEGER NOT NULL,
		response_body_size INTEGER NOT NULL,
		entities INTEGER NOT NULL,
		lookups INTEGER NOT NULL,
		lookup_failures INTEGER NOT NULL,
		enriched INTEGER NOT NULL,
		success INTEGER NOT NULL,
		error TEXT,
		total_latency_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_request_events_timestamp
		ON request_events(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRequest persists one request event.
func (s *Store) SaveRequest(ctx context.Context, event *RequestEvent) error {
	_, err := s.insertStmt.ExecContext(ctx,
		event.RequestID,
		event.Timestamp.UnixMilli(),
		event.ClientIP,
		event.StatusCode,
		event.RequestBodySize,
		event.ResponseBodySize,
		event.Entities,
		event.Lookups,
		event.LookupFailures,
		boolToInt(event.Enriched),
		boolToInt(event.Success),
		event.Error,
		event.TotalLatencyMs,
	)
	if err != nil {
		return fmt.Errorf("saving request event: %w", err)
	}
	return nil
}

// RecentRequests returns the newest events, most recent first.
func (s *Store) RecentRequests(ctx context.Context, limit int) ([]RequestEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, timestamp, client_ip, status_code,
		       request_body_size, response_body_size,
		       entities, lookups, lookup_failures,
		       enriched, success, error, total_latency_ms
		FROM request_events
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying request events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []RequestEvent
	for rows.Next() {
		var ev RequestEvent
		var ts int64
		var enriched, success int
		if err := rows.Scan(
			&ev.RequestID, &ts, &ev.ClientIP, &ev.StatusCode,
			&ev.RequestBodySize, &ev.ResponseBodySize,
			&ev.Entities, &ev.Lookups, &ev.LookupFailures,
			&enriched, &success, &ev.Error, &ev.TotalLatencyMs,
		); err != nil {
			return nil, fmt.Errorf("scanning request event: %w", err)
		}
		ev.Timestamp = time.UnixMilli(ts)
		ev.Enriched = enriched != 0
		ev.Success = success != 0
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.insertStmt != nil {
		_ = s.insertStmt.Close()
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

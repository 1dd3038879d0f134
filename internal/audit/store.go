// Package audit persists failover events to PostgreSQL so that provider
// outages and switches can be analysed after the fact.
//
// The store is append-only: events are written once by [Recorder] goroutines
// subscribed to the capability orchestrators and read back through
// [Store.Recent]. When no database is configured the server runs without an
// audit trail and events are kept only in the in-memory ring.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vocalis-ai/vocalis/internal/failover"
)

const ddlFailoverEvents = `
CREATE TABLE IF NOT EXISTS failover_events (
    id          BIGSERIAL    PRIMARY KEY,
    capability  TEXT         NOT NULL,
    event_type  TEXT         NOT NULL,
    provider    TEXT         NOT NULL DEFAULT '',
    from_name   TEXT         NOT NULL DEFAULT '',
    to_name     TEXT         NOT NULL DEFAULT '',
    reason      TEXT         NOT NULL DEFAULT '',
    error       TEXT         NOT NULL DEFAULT '',
    occurred_at TIMESTAMPTZ  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_failover_events_capability
    ON failover_events (capability);

CREATE INDEX IF NOT EXISTS idx_failover_events_occurred_at
    ON failover_events (occurred_at);
`

// Record is one persisted failover event.
type Record struct {
	ID         int64              `json:"id"`
	Capability string             `json:"capability"`
	Type       failover.EventType `json:"type"`
	Provider   string             `json:"provider,omitempty"`
	From       string             `json:"from,omitempty"`
	To         string             `json:"to,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	Err        string             `json:"error,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// Store is the PostgreSQL-backed audit trail. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store, establishes a connection pool to the
// PostgreSQL database at dsn, and runs [Migrate] to ensure the events table
// exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("audit store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("audit store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates the failover_events table and its indexes if they do not
// already exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlFailoverEvents); err != nil {
		return fmt.Errorf("audit store: create failover_events: %w", err)
	}
	return nil
}

// Save appends one event to the audit trail.
func (s *Store) Save(ctx context.Context, capability string, ev failover.Event) error {
	const q = `
INSERT INTO failover_events
    (capability, event_type, provider, from_name, to_name, reason, error, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, q,
		capability, string(ev.Type), ev.Provider, ev.From, ev.To, ev.Reason, ev.Err, ev.Time)
	if err != nil {
		return fmt.Errorf("audit store: insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit events for the given capability, newest first.
// An empty capability returns events for all capabilities.
func (s *Store) Recent(ctx context.Context, capability string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	const q = `
SELECT id, capability, event_type, provider, from_name, to_name, reason, error, occurred_at
FROM failover_events
WHERE ($1 = '' OR capability = $1)
ORDER BY occurred_at DESC, id DESC
LIMIT $2`

	rows, err := s.pool.Query(ctx, q, capability, limit)
	if err != nil {
		return nil, fmt.Errorf("audit store: query events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var typ string
		if err := rows.Scan(&r.ID, &r.Capability, &typ, &r.Provider, &r.From, &r.To, &r.Reason, &r.Err, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("audit store: scan event: %w", err)
		}
		r.Type = failover.EventType(typ)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit store: iterate events: %w", err)
	}
	return out, nil
}

// Ping verifies database connectivity, for use as a readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

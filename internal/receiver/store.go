package receiver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/deepspace-relay/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS telemetry (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	spacecraft_id TEXT    NOT NULL,
	seq           INTEGER NOT NULL,
	channel       TEXT    NOT NULL,
	received_at   TEXT    NOT NULL,
	checksum      REAL    NOT NULL,
	payload       TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS telemetry_craft_seq ON telemetry (spacecraft_id, seq);
`

// StoredReport is one persisted telemetry row.
type StoredReport struct {
	SpacecraftID string
	Sequence     uint64
	Channel      string
	ReceivedAt   time.Time
	Checksum     float64
	Report       *model.TelemetryReport
}

// Store persists verified telemetry into SQLite. The full report is kept
// as JSON alongside the indexed identity columns; analysis tooling reads
// the payload, operators query by craft and sequence.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the telemetry database at path.
// ":memory:" gives an ephemeral store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// The sqlite driver serializes writes; one connection avoids
	// SQLITE_BUSY under concurrent acks.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Save persists one verified report.
func (s *Store) Save(ctx context.Context, channel string, receivedAt time.Time, r *model.TelemetryReport) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO telemetry (spacecraft_id, seq, channel, received_at, checksum, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.SpacecraftID, r.Sequence, channel, receivedAt.UTC().Format(time.RFC3339Nano), r.Checksum, string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}
	return nil
}

// Recent returns the newest reports for one spacecraft, most recent
// first. An empty spacecraftID returns the newest across the fleet.
func (s *Store) Recent(ctx context.Context, spacecraftID string, limit int) ([]StoredReport, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT spacecraft_id, seq, channel, received_at, checksum, payload
	          FROM telemetry`
	args := []any{}
	if spacecraftID != "" {
		query += ` WHERE spacecraft_id = ?`
		args = append(args, spacecraftID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query telemetry: %w", err)
	}
	defer rows.Close()

	var out []StoredReport
	for rows.Next() {
		var (
			rec        StoredReport
			receivedAt string
			payload    string
		)
		if err := rows.Scan(&rec.SpacecraftID, &rec.Sequence, &rec.Channel, &receivedAt, &rec.Checksum, &payload); err != nil {
			return nil, fmt.Errorf("scan telemetry row: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, receivedAt); err == nil {
			rec.ReceivedAt = ts
		}
		var report model.TelemetryReport
		if err := json.Unmarshal([]byte(payload), &report); err == nil {
			rec.Report = &report
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of stored reports for one spacecraft.
func (s *Store) Count(ctx context.Context, spacecraftID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM telemetry WHERE spacecraft_id = ?`, spacecraftID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count telemetry: %w", err)
	}
	return n, nil
}

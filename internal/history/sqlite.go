package history

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteSink writes events to a SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) a SQLite history sink.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func NewSQLite(dsn string) (*SQLiteSink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	sink := &SQLiteSink{db: db}
	if err := sink.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sink, nil
}

func (s *SQLiteSink) ensureSchema(ctx context.Context) error {
	// Append-only audit table. Timestamp defaults to CURRENT_TIMESTAMP when not provided.
	stmt := `CREATE TABLE IF NOT EXISTS supervisor_history(
		timestamp TIMESTAMP NOT NULL DEFAULT (CURRENT_TIMESTAMP),
		name TEXT NOT NULL,
		action TEXT NOT NULL,
		state TEXT NOT NULL,
		pid INTEGER NOT NULL,
		detail TEXT
	);`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *SQLiteSink) Send(ctx context.Context, e Event) error {
	occur := e.OccurredAt.UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO supervisor_history(timestamp, name, action, state, pid, detail)
		VALUES(?, ?, ?, ?, ?, ?);`,
		occur, e.Name, e.Action, e.State, e.PID, e.Detail)
	return err
}

// Recent returns the latest limit events for name, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, name string, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, name, action, state, pid, COALESCE(detail, '')
		FROM supervisor_history WHERE name = ?
		ORDER BY timestamp DESC LIMIT ?;`, name, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.OccurredAt, &e.Name, &e.Action, &e.State, &e.PID, &e.Detail); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

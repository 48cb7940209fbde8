package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shadowproxy/shadowrelay/relay"
)

const schema = `CREATE TABLE IF NOT EXISTS records (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	received_at INTEGER NOT NULL,
	type        TEXT NOT NULL,
	method      TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	headers     TEXT NOT NULL,
	body        TEXT NOT NULL
)`

// SQLiteStore persists records in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a throwaway store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Add(ctx context.Context, rec relay.Record) (Entry, error) {
	entry := newEntry(rec, s.now())
	headers := rec.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	encoded, err := json.Marshal(headers)
	if err != nil {
		return Entry{}, fmt.Errorf("encode headers: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, received_at, type, method, url, status_code, headers, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ReceivedAt.UnixNano(), string(rec.Type), rec.Method, rec.URL, rec.StatusCode, string(encoded), rec.Body,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert record: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, received_at, type, method, url, status_code, headers, body FROM records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			received int64
			typ      string
			headers  string
		)
		if err := rows.Scan(&e.ID, &received, &typ, &e.Record.Method, &e.Record.URL, &e.Record.StatusCode, &headers, &e.Record.Body); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		e.ReceivedAt = time.Unix(0, received).UTC()
		e.Record.Type = relay.RecordType(typ)
		if err := json.Unmarshal([]byte(headers), &e.Record.Headers); err != nil {
			return nil, fmt.Errorf("decode headers: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)

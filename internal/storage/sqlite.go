package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jmerrifield20/sundew/internal/classify"
	"github.com/jmerrifield20/sundew/internal/session"
)

// SQLiteStore keeps one row per verdict in an embedded database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Migrate creates the verdict table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS verdicts (
		session_id   TEXT PRIMARY KEY,
		visitor_key  TEXT NOT NULL,
		first_seen   INTEGER NOT NULL,
		last_seen    INTEGER NOT NULL,
		label        TEXT NOT NULL,
		composite    REAL NOT NULL,
		dominant     TEXT NOT NULL,
		event_count  INTEGER NOT NULL,
		reason       TEXT NOT NULL,
		finalized_at INTEGER NOT NULL,
		scores_json  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_verdicts_finalized ON verdicts(finalized_at);
	CREATE INDEX IF NOT EXISTS idx_verdicts_label ON verdicts(label);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Emit inserts v. A second verdict for the same session is ignored.
func (s *SQLiteStore) Emit(ctx context.Context, v session.Verdict) error {
	scores, err := json.Marshal(v.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO verdicts
			(session_id, visitor_key, first_seen, last_seen, label, composite,
			 dominant, event_count, reason, finalized_at, scores_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.SessionID, v.Key, v.FirstSeen.UnixNano(), v.LastSeen.UnixNano(),
		string(v.Label), v.Composite, v.Dominant, v.EventCount, string(v.Reason),
		v.FinalizedAt.UnixNano(), string(scores),
	)
	if err != nil {
		return fmt.Errorf("insert verdict: %w", err)
	}
	return nil
}

// Recent returns up to limit verdicts, newest first. An empty label matches
// every label.
func (s *SQLiteStore) Recent(ctx context.Context, limit int, label string) ([]session.Verdict, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, visitor_key, first_seen, last_seen, label, composite,
		       dominant, event_count, reason, finalized_at, scores_json
		FROM verdicts
		WHERE ? = '' OR label = ?
		ORDER BY finalized_at DESC, session_id
		LIMIT ?`, label, label, limit)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	var out []session.Verdict
	for rows.Next() {
		var (
			v                      session.Verdict
			first, last, finalized int64
			lbl, reason, scores    string
		)
		if err := rows.Scan(
			&v.SessionID, &v.Key, &first, &last, &lbl, &v.Composite,
			&v.Dominant, &v.EventCount, &reason, &finalized, &scores,
		); err != nil {
			return nil, fmt.Errorf("scan verdict row: %w", err)
		}
		if err := json.Unmarshal([]byte(scores), &v.Scores); err != nil {
			return nil, fmt.Errorf("decode scores for %s: %w", v.SessionID, err)
		}
		v.Label = classify.Label(lbl)
		v.Reason = session.Reason(reason)
		v.FirstSeen = time.Unix(0, first).UTC()
		v.LastSeen = time.Unix(0, last).UTC()
		v.FinalizedAt = time.Unix(0, finalized).UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

// Counts returns the number of stored verdicts per label.
func (s *SQLiteStore) Counts(ctx context.Context) (map[classify.Label]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT label, COUNT(*) FROM verdicts GROUP BY label")
	if err != nil {
		return nil, fmt.Errorf("count verdicts: %w", err)
	}
	defer rows.Close()

	out := make(map[classify.Label]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		out[classify.Label(label)] = n
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

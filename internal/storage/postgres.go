package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jmerrifield20/sundew/internal/session"
)

// advisoryLockKey serialises concurrent appends across honeypot instances
// sharing one database.
const advisoryLockKey = int64(1_937_075_575)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sundew_verdicts (
	idx        BIGINT      PRIMARY KEY,
	timestamp  TIMESTAMPTZ NOT NULL,
	session_id TEXT        NOT NULL,
	label      TEXT        NOT NULL,
	data_hash  TEXT        NOT NULL,
	prev_hash  TEXT        NOT NULL,
	hash       TEXT        NOT NULL,
	verdict    TEXT        NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS sundew_verdicts_session_idx
	ON sundew_verdicts (session_id) WHERE idx > 0;
INSERT INTO sundew_verdicts (idx, timestamp, session_id, label, data_hash, prev_hash, hash)
VALUES (0, now(), '', 'genesis', '` + GenesisHash + `', '` + GenesisHash + `', '` + GenesisHash + `')
ON CONFLICT (idx) DO NOTHING;
`

// PostgresStore persists the verdict chain to PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects to url and verifies connectivity.
func NewPostgresStore(ctx context.Context, url string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Migrate creates the verdict table and its genesis row.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate verdict table: %w", err)
	}
	return nil
}

// Emit appends v inside one transaction holding the advisory lock. A
// verdict for a session already in the chain is ignored.
func (s *PostgresStore) Emit(ctx context.Context, v session.Verdict) error {
	body, sum, err := encodeVerdict(v)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM sundew_verdicts WHERE session_id = $1 AND idx > 0)", v.SessionID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check verdict: %w", err)
	}
	if exists {
		return nil
	}

	var prevIdx int
	var prevHash string
	if err := tx.QueryRow(ctx,
		"SELECT idx, hash FROM sundew_verdicts ORDER BY idx DESC LIMIT 1",
	).Scan(&prevIdx, &prevHash); err != nil {
		return fmt.Errorf("read chain tail: %w", err)
	}

	e := &Entry{
		Index:     prevIdx + 1,
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		SessionID: v.SessionID,
		Label:     string(v.Label),
		DataHash:  sum,
		PrevHash:  prevHash,
	}
	e.Hash = hashEntry(e)

	if _, err := tx.Exec(ctx,
		`INSERT INTO sundew_verdicts (idx, timestamp, session_id, label, data_hash, prev_hash, hash, verdict)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.Index, e.Timestamp, e.SessionID, e.Label, e.DataHash, e.PrevHash, e.Hash, string(body),
	); err != nil {
		return fmt.Errorf("insert verdict: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit verdict tx: %w", err)
	}

	s.logger.Debug("verdict appended",
		zap.Int("idx", e.Index),
		zap.String("session_id", e.SessionID),
		zap.String("label", e.Label),
	)
	return nil
}

// Len counts entries, genesis included.
func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM sundew_verdicts").Scan(&n); err != nil {
		return 0, fmt.Errorf("count verdicts: %w", err)
	}
	return n, nil
}

// Verify loads the chain ordered by idx and validates every link.
func (s *PostgresStore) Verify(ctx context.Context) error {
	rows, err := s.pool.Query(ctx,
		`SELECT idx, timestamp, session_id, label, data_hash, prev_hash, hash, verdict
		 FROM sundew_verdicts ORDER BY idx ASC`,
	)
	if err != nil {
		return fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var body string
		if err := rows.Scan(
			&e.Index, &e.Timestamp, &e.SessionID, &e.Label,
			&e.DataHash, &e.PrevHash, &e.Hash, &body,
		); err != nil {
			return fmt.Errorf("scan verdict row: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		if e.Index > 0 {
			if sha256Sum([]byte(body)) != e.DataHash {
				return fmt.Errorf("entry %d verdict does not match its data hash", e.Index)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return verifyChain(entries)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

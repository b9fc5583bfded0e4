package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/moti-app/moti-proxy/internal/ledger"
)

// Store implements ledger.Store backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

// PoolConfig tunes the database/sql connection pool. Zero values keep the
// driver defaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// New opens a PostgreSQL-backed ledger store using the provided DSN.
func New(dsn string, pool PoolConfig) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS reply_entries (
	id UUID PRIMARY KEY,
	request_id TEXT,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	message_chars INTEGER NOT NULL,
	reply_chars INTEGER NOT NULL,
	prompt_tokens BIGINT NOT NULL DEFAULT 0,
	completion_tokens BIGINT NOT NULL DEFAULT 0,
	repetitive BOOLEAN NOT NULL DEFAULT FALSE,
	latency_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_reply_entries_created ON reply_entries(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_reply_entries_provider ON reply_entries(provider);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases underlying database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Record inserts a new reply entry.
func (s *Store) Record(ctx context.Context, entry ledger.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO reply_entries(id, request_id, provider, model, message_chars, reply_chars, prompt_tokens, completion_tokens, repetitive, latency_ms, created_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID,
		entry.RequestID,
		entry.Provider,
		entry.Model,
		entry.MessageChars,
		entry.ReplyChars,
		entry.PromptTokens,
		entry.CompletionTokens,
		entry.Repetitive,
		entry.LatencyMS,
		created,
	)
	return err
}

// Summary returns totals across all recorded replies.
func (s *Store) Summary(ctx context.Context) (ledger.Summary, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT
	COUNT(*) AS replies,
	COUNT(*) FILTER (WHERE repetitive) AS repetitive
FROM reply_entries`)

	var summary ledger.Summary
	if err := row.Scan(&summary.Replies, &summary.Repetitive); err != nil {
		return ledger.Summary{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT provider, COUNT(*) FROM reply_entries GROUP BY provider`)
	if err != nil {
		return ledger.Summary{}, err
	}
	defer rows.Close()

	summary.Providers = make(map[string]int64)
	for rows.Next() {
		var provider string
		var count int64
		if err := rows.Scan(&provider, &count); err != nil {
			return ledger.Summary{}, err
		}
		summary.Providers[provider] = count
	}
	return summary, rows.Err()
}

// ListRecent returns the latest entries, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]ledger.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, request_id, provider, model, message_chars, reply_chars, prompt_tokens, completion_tokens, repetitive, latency_ms, created_at
FROM reply_entries
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		var requestID sql.NullString
		if err := rows.Scan(&e.ID, &requestID, &e.Provider, &e.Model, &e.MessageChars, &e.ReplyChars,
			&e.PromptTokens, &e.CompletionTokens, &e.Repetitive, &e.LatencyMS, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.RequestID = requestID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// register sqlite driver
	_ "modernc.org/sqlite"

	"github.com/moti-app/moti-proxy/internal/ledger"
)

// Store implements ledger.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite store at the given path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
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
	id TEXT PRIMARY KEY,
	request_id TEXT,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	message_chars INTEGER NOT NULL,
	reply_chars INTEGER NOT NULL,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	repetitive INTEGER NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_reply_entries_created ON reply_entries(created_at DESC);
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
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
	COALESCE(SUM(CASE WHEN repetitive THEN 1 ELSE 0 END), 0) AS repetitive
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
LIMIT ?`, limit)
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

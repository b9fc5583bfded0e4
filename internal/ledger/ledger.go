package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrClosed is returned when writing to a store that has been closed.
var ErrClosed = errors.New("ledger: store closed")

// Entry records one reply relayed to a client. Message and reply text are not
// stored, only their sizes.
type Entry struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"request_id,omitempty"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	MessageChars     int       `json:"message_chars"`
	ReplyChars       int       `json:"reply_chars"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	Repetitive       bool      `json:"repetitive"`
	LatencyMS        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// Summary aggregates recorded replies.
type Summary struct {
	Replies    int64            `json:"replies"`
	Repetitive int64            `json:"repetitive"`
	Providers  map[string]int64 `json:"providers"`
}

// Store defines persistence behaviour for the ledger.
type Store interface {
	Record(ctx context.Context, entry Entry) error
	Summary(ctx context.Context) (Summary, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Pinger is implemented by stores backed by a database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Validate checks the fields every backend requires.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("ledger record requires id")
	}
	if strings.TrimSpace(e.Provider) == "" {
		return errors.New("ledger record requires provider")
	}
	return nil
}

// IsPostgresDSN reports whether dsn addresses a PostgreSQL server rather than
// a SQLite file.
func IsPostgresDSN(dsn string) bool {
	dsn = strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

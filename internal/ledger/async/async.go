package async

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/moti-app/moti-proxy/internal/ledger"
)

// Store wraps a ledger.Store with asynchronous batch writes.
// Entries are queued in memory and written in batches off the request path.
// Entries still queued when the process crashes are lost.
type Store struct {
	underlying    ledger.Store
	entryChan     chan ledger.Entry
	batchSize     int
	flushInterval time.Duration
	wg            sync.WaitGroup
	logger        *zap.SugaredLogger

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// Config configures the async ledger behavior.
type Config struct {
	BatchSize     int           // Maximum entries per batch (default: 100)
	FlushInterval time.Duration // Maximum time between flushes (default: 1s)
	ChannelBuffer int           // Channel buffer size (default: 1024)
	NumWorkers    int           // Number of parallel batch writers (default: 1)
	Logger        *zap.SugaredLogger
}

// New wraps an existing ledger store with async batch writing.
func New(underlying ledger.Store, cfg Config) *Store {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 1 * time.Second
	}
	if cfg.ChannelBuffer <= 0 {
		cfg.ChannelBuffer = 1024
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	s := &Store{
		underlying:    underlying,
		entryChan:     make(chan ledger.Entry, cfg.ChannelBuffer),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		logger:        cfg.Logger,
	}

	for i := 0; i < cfg.NumWorkers; i++ {
		s.wg.Add(1)
		go s.batchWriter(i)
	}

	s.logger.Debugw("async ledger started",
		"workers", cfg.NumWorkers, "batch_size", cfg.BatchSize,
		"flush_interval", cfg.FlushInterval, "buffer", cfg.ChannelBuffer)
	return s
}

// batchWriter drains the queue until it is closed, flushing on size or interval.
func (s *Store) batchWriter(workerID int) {
	defer s.wg.Done()

	batch := make([]ledger.Entry, 0, s.batchSize)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		ctx := context.Background()
		written := 0
		for _, entry := range batch {
			if err := s.underlying.Record(ctx, entry); err != nil {
				s.logger.Errorw("ledger write failed", "worker", workerID, "entry", entry.ID, "error", err)
				continue
			}
			written++
		}
		s.logger.Debugw("ledger batch flushed",
			"worker", workerID, "written", written, "batch", len(batch), "elapsed", time.Since(start))
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-s.entryChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Record queues an entry for asynchronous writing. It never blocks: when the
// queue is full the entry is dropped and counted.
func (s *Store) Record(ctx context.Context, entry ledger.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ledger.ErrClosed
	}

	select {
	case s.entryChan <- entry:
		return nil
	default:
		s.dropped.Add(1)
		s.logger.Warnw("ledger queue full, dropping entry", "entry", entry.ID)
		return nil
	}
}

// Dropped returns the number of entries discarded because the queue was full.
func (s *Store) Dropped() int64 {
	return s.dropped.Load()
}

// Summary delegates to the underlying store (blocking operation).
func (s *Store) Summary(ctx context.Context) (ledger.Summary, error) {
	return s.underlying.Summary(ctx)
}

// ListRecent delegates to the underlying store (blocking operation).
func (s *Store) ListRecent(ctx context.Context, limit int) ([]ledger.Entry, error) {
	return s.underlying.ListRecent(ctx, limit)
}

// Ping delegates to the wrapped store when it holds a connection.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.underlying.(ledger.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close flushes remaining entries and closes the underlying store. Calling it
// more than once is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.entryChan)
	s.mu.Unlock()

	s.wg.Wait()
	return s.underlying.Close()
}

package main

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/moti-app/moti-proxy/internal/ledger"
	"github.com/moti-app/moti-proxy/internal/ledger/async"
	"github.com/moti-app/moti-proxy/internal/ledger/postgres"
	"github.com/moti-app/moti-proxy/internal/ledger/sqlite"
)

// openLedger picks the backing store from the path: postgres DSNs go to pgx,
// anything else is a sqlite file. An empty path disables the ledger.
func openLedger(path string, logger *zap.SugaredLogger) (ledger.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	var (
		store   ledger.Store
		backend string
		err     error
	)
	if ledger.IsPostgresDSN(path) {
		backend = "postgres"
		store, err = postgres.New(path, postgres.PoolConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		})
	} else {
		backend = "sqlite"
		store, err = sqlite.New(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", backend, err)
	}
	logger.Infow("reply ledger enabled", "backend", backend)

	return async.New(store, async.Config{Logger: logger}), nil
}

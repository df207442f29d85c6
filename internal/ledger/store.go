// Package ledger is the durable append-only store of §3/§4.1: users,
// invites, recoveries, minted invoices/offers, and receive/send records,
// plus the balance aggregation and idempotent inserts the orchestrator
// relies on.
package ledger

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
	"go.uber.org/zap"

	"github.com/puncture-ln/punctured/pkg/logger"
)

// Config describes where the embedded database file lives.
type Config struct {
	// Path is the filesystem path of the sqlite database file, e.g.
	// "<data_dir>/punctured.db". Use ":memory:" for an ephemeral store
	// (used by tests).
	Path string
}

// Store wraps the embedded relational database. Per §9's "later snapshot"
// concurrency model, the underlying *sql.DB is limited to a single open
// connection: multi-statement operations execute inside explicit
// transactions, and a single connection removes any need to reason about
// cross-connection serialization of the send path.
type Store struct {
	db *sql.DB
}

// Open connects to the embedded database and ensures schema migrations are
// applied before returning, per §6.4 ("migrations are versioned and applied
// on startup before accepting traffic").
func Open(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", cfg.Path, err)
	}
	// A single connection serializes all ledger access; sqlite's own
	// locking would otherwise force busy-retry loops under concurrent
	// writers, and the orchestrator's send lock already serializes the
	// send path at a higher level.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// fatal logs and terminates the process on an unexpected ledger error, per
// §4.1/§7: "errors are fatal: the ledger is treated as single-writer
// durable truth."
func fatal(op string, err error) {
	logger.Fatal("ledger: fatal store error", zap.String("op", op), zap.Error(err))
}

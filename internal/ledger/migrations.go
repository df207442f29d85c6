package ledger

import "fmt"

// migrations are applied in order, tracked by a schema_version table. New
// entries are appended; existing entries are never edited once released,
// matching lnd's channeldb migration-version convention.
var migrations = []string{
	// 1: initial schema.
	`
	CREATE TABLE users (
		pk            TEXT PRIMARY KEY,
		invite_id     TEXT NOT NULL,
		recovery_name TEXT,
		created_at    INTEGER NOT NULL
	);
	CREATE TABLE invites (
		id         TEXT PRIMARY KEY,
		user_limit INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE recoveries (
		id         TEXT PRIMARY KEY,
		user_pk    TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE invoices (
		id          TEXT PRIMARY KEY,
		user_pk     TEXT NOT NULL,
		amount_msat INTEGER,
		description TEXT NOT NULL,
		pr          TEXT NOT NULL,
		expires_at  INTEGER NOT NULL,
		created_at  INTEGER NOT NULL
	);
	CREATE INDEX idx_invoices_user_pk ON invoices(user_pk);
	CREATE TABLE offers (
		id          TEXT PRIMARY KEY,
		user_pk     TEXT NOT NULL,
		amount_msat INTEGER,
		description TEXT NOT NULL,
		pr          TEXT NOT NULL,
		expires_at  INTEGER,
		created_at  INTEGER NOT NULL
	);
	CREATE INDEX idx_offers_user_pk ON offers(user_pk);
	CREATE TABLE receives (
		id          TEXT PRIMARY KEY,
		user_pk     TEXT NOT NULL,
		amount_msat INTEGER NOT NULL,
		description TEXT NOT NULL,
		pr          TEXT NOT NULL,
		created_at  INTEGER NOT NULL
	);
	CREATE INDEX idx_receives_user_pk ON receives(user_pk);
	CREATE TABLE sends (
		id          TEXT PRIMARY KEY,
		user_pk     TEXT NOT NULL,
		amount_msat INTEGER NOT NULL,
		fee_msat    INTEGER NOT NULL,
		description TEXT NOT NULL,
		pr          TEXT NOT NULL,
		status      TEXT NOT NULL,
		ln_address  TEXT,
		created_at  INTEGER NOT NULL
	);
	CREATE INDEX idx_sends_user_pk ON sends(user_pk);
	CREATE INDEX idx_sends_status ON sends(status);
	`,
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	row := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}
	return nil
}

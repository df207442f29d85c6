package ledger

import (
	"database/sql"
	"errors"
	"fmt"
)

// CreateRecovery inserts a new recovery row.
func (s *Store) CreateRecovery(rec Recovery) error {
	_, err := s.db.Exec(
		`INSERT INTO recoveries (id, user_pk, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.UserPK, rec.ExpiresAt, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ledger: create_recovery: %w", err)
	}
	return nil
}

// GetRecovery returns the recovery row for id, or ErrNotFound.
func (s *Store) GetRecovery(id string) (Recovery, error) {
	var rec Recovery
	err := s.db.QueryRow(
		`SELECT id, user_pk, expires_at, created_at FROM recoveries WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.UserPK, &rec.ExpiresAt, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Recovery{}, ErrNotFound
	}
	if err != nil {
		return Recovery{}, fmt.Errorf("ledger: get_recovery: %w", err)
	}
	return rec, nil
}

// DeleteRecovery removes the recovery row for id. Used to make recoveries
// one-shot on successful use (§9 "Recovery single-use" — this daemon
// chooses the one-shot interpretation; see the design notes).
func (s *Store) DeleteRecovery(id string) error {
	_, err := s.db.Exec(`DELETE FROM recoveries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ledger: delete_recovery: %w", err)
	}
	return nil
}

package ledger

import (
	"database/sql"
	"errors"
	"fmt"
)

// CreateInvite inserts a new invite row.
func (s *Store) CreateInvite(inv Invite) error {
	_, err := s.db.Exec(
		`INSERT INTO invites (id, user_limit, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		inv.ID, inv.UserLimit, inv.ExpiresAt, inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ledger: create_invite: %w", err)
	}
	return nil
}

// GetInvite returns the invite row for id, or ErrNotFound.
func (s *Store) GetInvite(id string) (Invite, error) {
	var inv Invite
	err := s.db.QueryRow(
		`SELECT id, user_limit, expires_at, created_at FROM invites WHERE id = ?`, id,
	).Scan(&inv.ID, &inv.UserLimit, &inv.ExpiresAt, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Invite{}, ErrNotFound
	}
	if err != nil {
		return Invite{}, fmt.Errorf("ledger: get_invite: %w", err)
	}
	return inv, nil
}

// CountInviteUsers returns the number of users registered through
// invite id.
func (s *Store) CountInviteUsers(id string) (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE invite_id = ?`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ledger: count_invite_users: %w", err)
	}
	return count, nil
}

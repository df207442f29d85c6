package ledger

import (
	"database/sql"
	"errors"
	"fmt"
)

// UserExists reports whether pk has completed registration.
func (s *Store) UserExists(pk string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE pk = ?)`, pk).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ledger: user_exists: %w", err)
	}
	return exists, nil
}

// RegisterUser inserts pk if absent, associating it with inviteID. A
// second registration attempt for the same pk is a no-op (insert-if-absent,
// §4.1).
func (s *Store) RegisterUser(pk, inviteID string, now int64) error {
	_, err := s.db.Exec(
		`INSERT INTO users (pk, invite_id, recovery_name, created_at) VALUES (?, ?, NULL, ?)
		 ON CONFLICT(pk) DO NOTHING`,
		pk, inviteID, now,
	)
	if err != nil {
		return fmt.Errorf("ledger: register_user: %w", err)
	}
	return nil
}

// GetUser returns the user row for pk, or ErrNotFound.
func (s *Store) GetUser(pk string) (User, error) {
	var u User
	err := s.db.QueryRow(
		`SELECT pk, invite_id, recovery_name, created_at FROM users WHERE pk = ?`, pk,
	).Scan(&u.PK, &u.InviteID, &u.RecoveryName, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ledger: get_user: %w", err)
	}
	return u, nil
}

// SetRecoveryName updates the user's recovery_name. A nil name clears it.
func (s *Store) SetRecoveryName(pk string, name *string) error {
	res, err := s.db.Exec(`UPDATE users SET recovery_name = ? WHERE pk = ?`, name, pk)
	if err != nil {
		return fmt.Errorf("ledger: set_recovery_name: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: set_recovery_name: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns every registered user with its computed balance.
func (s *Store) ListUsers() ([]UserInfo, error) {
	rows, err := s.db.Query(`SELECT pk, invite_id, recovery_name, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("ledger: list_users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.PK, &u.InviteID, &u.RecoveryName, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: list_users: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: list_users: %w", err)
	}
	// Release the store's single connection before querying balances.
	rows.Close()

	var out []UserInfo
	for _, u := range users {
		balance, err := s.UserBalance(u.PK)
		if err != nil {
			return nil, err
		}
		out = append(out, UserInfo{User: u, BalanceMsat: balance})
	}
	return out, nil
}

// UserBalance computes the §3 balance function for pk: total received minus
// total sent (amount+fee) for sends not in status 'failed'. A negative
// result is an invariant violation: it is logged via fatal, which
// terminates the process.
func (s *Store) UserBalance(pk string) (int64, error) {
	var received int64
	if err := s.db.QueryRow(
		`SELECT COALESCE(SUM(amount_msat), 0) FROM receives WHERE user_pk = ?`, pk,
	).Scan(&received); err != nil {
		return 0, fmt.Errorf("ledger: user_balance (received): %w", err)
	}

	var sent int64
	if err := s.db.QueryRow(
		`SELECT COALESCE(SUM(amount_msat + fee_msat), 0) FROM sends WHERE user_pk = ? AND status != ?`,
		pk, SendFailed,
	).Scan(&sent); err != nil {
		return 0, fmt.Errorf("ledger: user_balance (sent): %w", err)
	}

	balance := received - sent
	if balance < 0 {
		fatal("user_balance", fmt.Errorf("negative balance for %s: received=%d sent=%d", pk, received, sent))
		return 0, nil
	}
	return balance, nil
}

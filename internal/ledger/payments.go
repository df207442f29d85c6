package ledger

import (
	"database/sql"
	"errors"
	"fmt"
)

// CountPendingSends counts sends for pk still in status 'pending'.
func (s *Store) CountPendingSends(pk string) (int64, error) {
	var count int64
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM sends WHERE user_pk = ? AND status = ?`, pk, SendPending,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ledger: count_pending_sends: %w", err)
	}
	return count, nil
}

// CreateSend inserts a send row, expected to be in status 'pending'
// (§4.4 "submit outbound send to the node; record send pending").
func (s *Store) CreateSend(send Send) error {
	_, err := s.db.Exec(
		`INSERT INTO sends (id, user_pk, amount_msat, fee_msat, description, pr, status, ln_address, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		send.ID, send.UserPK, send.AmountMsat, send.FeeMsat, send.Description, send.PR,
		send.Status, send.LnAddress, send.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ledger: create_send: %w", err)
	}
	return nil
}

// CreateReceive inserts a receive row, idempotent on id: a second call with
// the same id is a no-op, satisfying I4 ("a settled invoice/offer produces
// exactly one receive record").
func (s *Store) CreateReceive(recv Receive) error {
	_, err := s.db.Exec(
		`INSERT INTO receives (id, user_pk, amount_msat, description, pr, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		recv.ID, recv.UserPK, recv.AmountMsat, recv.Description, recv.PR, recv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ledger: create_receive: %w", err)
	}
	return nil
}

// CreateInternalTransfer inserts the paired send (status 'successful') and
// receive (shared id) in a single transaction, satisfying I3 ("an internal
// transfer either inserts both send and receive or neither").
func (s *Store) CreateInternalTransfer(t InternalTransfer) error {
	if t.Send.ID != t.Receive.ID {
		return fmt.Errorf("ledger: create_internal_transfer: send id %q != receive id %q", t.Send.ID, t.Receive.ID)
	}
	if t.Send.Status != SendSuccessful {
		return fmt.Errorf("ledger: create_internal_transfer: send status must be successful, got %q", t.Send.Status)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("ledger: create_internal_transfer: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO sends (id, user_pk, amount_msat, fee_msat, description, pr, status, ln_address, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Send.ID, t.Send.UserPK, t.Send.AmountMsat, t.Send.FeeMsat, t.Send.Description, t.Send.PR,
		t.Send.Status, t.Send.LnAddress, t.Send.CreatedAt,
	); err != nil {
		return fmt.Errorf("ledger: create_internal_transfer: insert send: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO receives (id, user_pk, amount_msat, description, pr, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Receive.ID, t.Receive.UserPK, t.Receive.AmountMsat, t.Receive.Description, t.Receive.PR, t.Receive.CreatedAt,
	); err != nil {
		return fmt.Errorf("ledger: create_internal_transfer: insert receive: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger: create_internal_transfer: commit: %w", err)
	}
	return nil
}

// UpdateSendTerminal transitions a pending send to a terminal status and
// records its final fee, exactly once (I5). Returns the updated row, or
// ErrNotFound if id does not exist, or ErrAlreadyExists if the send had
// already left status 'pending'.
func (s *Store) UpdateSendTerminal(id string, status SendStatus, feePaidMsat int64) (Send, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Send{}, fmt.Errorf("ledger: update_send_terminal: begin: %w", err)
	}
	defer tx.Rollback()

	var current Send
	err = tx.QueryRow(
		`SELECT id, user_pk, amount_msat, fee_msat, description, pr, status, ln_address, created_at
		 FROM sends WHERE id = ?`, id,
	).Scan(&current.ID, &current.UserPK, &current.AmountMsat, &current.FeeMsat, &current.Description,
		&current.PR, &current.Status, &current.LnAddress, &current.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Send{}, ErrNotFound
	}
	if err != nil {
		return Send{}, fmt.Errorf("ledger: update_send_terminal: select: %w", err)
	}
	if current.Status != SendPending {
		return Send{}, ErrAlreadyExists
	}

	if _, err := tx.Exec(
		`UPDATE sends SET status = ?, fee_msat = ? WHERE id = ? AND status = ?`,
		status, feePaidMsat, id, SendPending,
	); err != nil {
		return Send{}, fmt.Errorf("ledger: update_send_terminal: update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Send{}, fmt.Errorf("ledger: update_send_terminal: commit: %w", err)
	}

	current.Status = status
	current.FeeMsat = feePaidMsat
	return current, nil
}

// ListRecentPayments returns the most recent n send/receive rows for pk, in
// chronological order, for the session layer's reconnect replay (§4.5,
// "the most recent ≤50 stored payments").
func (s *Store) ListRecentPayments(pk string, n int) ([]PaymentRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, 'send' AS kind, amount_msat, fee_msat, description, pr, status, ln_address, created_at
		 FROM sends WHERE user_pk = ?
		 UNION ALL
		 SELECT id, 'receive' AS kind, amount_msat, 0, description, pr, 'successful', NULL, created_at
		 FROM receives WHERE user_pk = ?
		 ORDER BY created_at DESC LIMIT ?`,
		pk, pk, n,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: list_recent_payments: %w", err)
	}
	defer rows.Close()

	var out []PaymentRecord
	for rows.Next() {
		var p PaymentRecord
		if err := rows.Scan(&p.ID, &p.Kind, &p.AmountMsat, &p.FeeMsat, &p.Description, &p.PR, &p.Status, &p.LnAddress, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: list_recent_payments: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: list_recent_payments: %w", err)
	}

	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// PaymentRecord is a flattened send-or-receive row used for the event
// forwarder's historical replay.
type PaymentRecord struct {
	ID          string
	Kind        string // "send" or "receive"
	AmountMsat  int64
	FeeMsat     int64
	Description string
	PR          string
	Status      SendStatus
	LnAddress   *string
	CreatedAt   int64
}

package ledger

import (
	"database/sql"
	"errors"
	"fmt"
)

// CreateInvoice inserts a newly minted bolt11 invoice.
func (s *Store) CreateInvoice(inv Invoice) error {
	_, err := s.db.Exec(
		`INSERT INTO invoices (id, user_pk, amount_msat, description, pr, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.UserPK, inv.AmountMsat, inv.Description, inv.PR, inv.ExpiresAt, inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ledger: create_invoice: %w", err)
	}
	return nil
}

// GetInvoice returns the invoice keyed by payment hash id, or ErrNotFound.
func (s *Store) GetInvoice(id string) (Invoice, error) {
	var inv Invoice
	err := s.db.QueryRow(
		`SELECT id, user_pk, amount_msat, description, pr, expires_at, created_at FROM invoices WHERE id = ?`, id,
	).Scan(&inv.ID, &inv.UserPK, &inv.AmountMsat, &inv.Description, &inv.PR, &inv.ExpiresAt, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("ledger: get_invoice: %w", err)
	}
	return inv, nil
}

// CountPendingInvoices counts invoices for pk that are neither settled (no
// receive row with a matching id) nor expired as of now.
func (s *Store) CountPendingInvoices(pk string, now int64) (int64, error) {
	var count int64
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM invoices i
		 WHERE i.user_pk = ? AND i.expires_at > ?
		 AND NOT EXISTS (SELECT 1 FROM receives r WHERE r.id = i.id)`,
		pk, now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ledger: count_pending_invoices: %w", err)
	}
	return count, nil
}

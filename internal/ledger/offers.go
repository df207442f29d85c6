package ledger

import (
	"database/sql"
	"errors"
	"fmt"
)

// CreateOffer inserts a newly minted bolt12 offer.
func (s *Store) CreateOffer(o Offer) error {
	_, err := s.db.Exec(
		`INSERT INTO offers (id, user_pk, amount_msat, description, pr, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserPK, o.AmountMsat, o.Description, o.PR, o.ExpiresAt, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ledger: create_offer: %w", err)
	}
	return nil
}

// GetOffer returns the offer keyed by offer id, or ErrNotFound.
func (s *Store) GetOffer(id string) (Offer, error) {
	var o Offer
	err := s.db.QueryRow(
		`SELECT id, user_pk, amount_msat, description, pr, expires_at, created_at FROM offers WHERE id = ?`, id,
	).Scan(&o.ID, &o.UserPK, &o.AmountMsat, &o.Description, &o.PR, &o.ExpiresAt, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Offer{}, ErrNotFound
	}
	if err != nil {
		return Offer{}, fmt.Errorf("ledger: get_offer: %w", err)
	}
	return o, nil
}

// GetOfferByUser returns pk's most recently created offer, or ErrNotFound
// if none exists yet.
func (s *Store) GetOfferByUser(pk string) (Offer, error) {
	var o Offer
	err := s.db.QueryRow(
		`SELECT id, user_pk, amount_msat, description, pr, expires_at, created_at
		 FROM offers WHERE user_pk = ? ORDER BY created_at DESC LIMIT 1`, pk,
	).Scan(&o.ID, &o.UserPK, &o.AmountMsat, &o.Description, &o.PR, &o.ExpiresAt, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Offer{}, ErrNotFound
	}
	if err != nil {
		return Offer{}, fmt.Errorf("ledger: get_offer_by_user: %w", err)
	}
	return o, nil
}

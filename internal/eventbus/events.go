// Package eventbus is the per-user publish/subscribe of §4.3: balance,
// payment, and status-update events fanned out to every live session for a
// given user public key, with bounded per-subscriber buffering and
// at-most-once delivery.
package eventbus

// Kind identifies which variant of the tagged Event union is populated.
type Kind string

const (
	KindBalance Kind = "balance"
	KindPayment Kind = "payment"
	KindUpdate  Kind = "update"
)

// PaymentType distinguishes a send from a receive in a Payment event.
type PaymentType string

const (
	PaymentTypeSend    PaymentType = "send"
	PaymentTypeReceive PaymentType = "receive"
)

// Event is the tagged union pushed on the bus and forwarded to client
// sessions (§6.1 "events pushed on unidirectional substreams").
type Event struct {
	Kind Kind `json:"kind"`

	Balance *BalanceEvent `json:"balance,omitempty"`
	Payment *PaymentEvent `json:"payment,omitempty"`
	Update  *UpdateEvent  `json:"update,omitempty"`

	// IsLive is true for events generated during the current session,
	// false for the historical prefix replayed on connect (§6.1).
	IsLive bool `json:"is_live"`
}

// BalanceEvent carries a user's current balance.
type BalanceEvent struct {
	AmountMsat int64 `json:"amount_msat"`
}

// PaymentEvent reports a send or receive row.
type PaymentEvent struct {
	ID          string      `json:"id"`
	PaymentType PaymentType `json:"payment_type"`
	AmountMsat  int64       `json:"amount_msat"`
	FeeMsat     int64       `json:"fee_msat"`
	Description string      `json:"description"`
	Status      string      `json:"status"`
	LnAddress   *string     `json:"ln_address,omitempty"`
	CreatedAt   int64       `json:"created_at"`
}

// UpdateEvent reports a send reaching a terminal state.
type UpdateEvent struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	FeeMsat int64  `json:"fee_msat"`
}

// NewBalance builds a live Balance event.
func NewBalance(amountMsat int64) Event {
	return Event{Kind: KindBalance, Balance: &BalanceEvent{AmountMsat: amountMsat}, IsLive: true}
}

// NewPayment builds a live Payment event.
func NewPayment(p PaymentEvent) Event {
	return Event{Kind: KindPayment, Payment: &p, IsLive: true}
}

// NewUpdate builds a live Update event.
func NewUpdate(u UpdateEvent) Event {
	return Event{Kind: KindUpdate, Update: &u, IsLive: true}
}

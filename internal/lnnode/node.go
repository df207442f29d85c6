// Package lnnode defines the external Lightning node contract of §4.7/§6.2
// and provides a concrete adapter to LND's gRPC surface, grounded on the
// teacher's internal/lnd client. The node is explicitly out of core scope
// (§1); only this interface is specified.
package lnnode

import "context"

// PaymentKind distinguishes the settlement key used to correlate an
// inbound payment with a minted invoice or offer (§4.4 settlement
// reconciliation).
type PaymentKind int

const (
	// KindBolt11 carries a payment hash correlating to a minted invoice.
	KindBolt11 PaymentKind = iota
	// KindBolt12Offer carries an offer id correlating to a minted offer.
	KindBolt12Offer
)

// MintedInvoice is the result of minting a bolt11 invoice.
type MintedInvoice struct {
	PaymentHash string // hex, 32 bytes — the Invoice.ID of §3
	PR          string // the wire bolt11 string
	ExpiresAt   int64  // unix millis
}

// MintedOffer is the result of minting a bolt12 offer.
type MintedOffer struct {
	OfferID string // hex, 32 bytes — the Offer.ID of §3
	PR      string // the wire bolt12 string
}

// SendResult is returned by the node when an outbound send is accepted for
// processing; terminal outcomes arrive later via the event stream.
type SendResult struct {
	PaymentID string // correlates to Send.ID (§3)
}

// PaymentReceived is emitted when an inbound payment settles (§6.2).
type PaymentReceived struct {
	PaymentID   string
	AmountMsat  int64
	Kind        PaymentKind
	PaymentHash string // populated when Kind == KindBolt11
	OfferID     string // populated when Kind == KindBolt12Offer
}

// PaymentSuccessful is emitted when an outbound send completes.
type PaymentSuccessful struct {
	PaymentID   string
	FeePaidMsat *int64
}

// PaymentFailed is emitted when an outbound send cannot be completed.
type PaymentFailed struct {
	PaymentID string
	Reason    string
}

// Event is the tagged union of asynchronous node events (§6.2).
type Event struct {
	Received   *PaymentReceived
	Successful *PaymentSuccessful
	Failed     *PaymentFailed
}

// Node is the external Lightning node contract the orchestrator and
// reactor depend on (§4.7, §6.2). Onchain/peer/channel operations are
// deliberately not part of this interface: they belong to the
// administrative surface, out of core scope.
type Node interface {
	// MintBolt11 mints a bolt11 invoice for amountMsat (0 = any amount
	// not supported here; bolt11_receive always specifies an amount)
	// with the given description and expiry.
	MintBolt11(ctx context.Context, amountMsat int64, description string, expirySecs int64) (MintedInvoice, error)

	// MintBolt12VariableAmount mints a reusable, amountless bolt12
	// offer.
	MintBolt12VariableAmount(ctx context.Context, description string) (MintedOffer, error)

	// SendBolt11 submits an outbound bolt11 payment for amountMsat.
	SendBolt11(ctx context.Context, invoice string, amountMsat int64) (SendResult, error)

	// SendBolt12 submits an outbound bolt12 payment for amountMsat.
	SendBolt12(ctx context.Context, offer string, amountMsat int64) (SendResult, error)

	// DecodeBolt11 decodes a bolt11 invoice without paying it, used to
	// derive the payment hash that keys internal-transfer detection.
	DecodeBolt11(ctx context.Context, invoice string) (DecodedBolt11, error)

	// DecodeBolt12 decodes a bolt12 offer string, used to derive the
	// offer id that keys internal-transfer detection for bolt12_send.
	DecodeBolt12(ctx context.Context, offer string) (DecodedBolt12, error)

	// Events returns a channel of asynchronous node events. Closed when
	// the node stops.
	Events() <-chan Event

	// Start begins processing node events.
	Start(ctx context.Context) error

	// Stop releases the node's resources.
	Stop() error
}

// DecodedBolt11 is the subset of a decoded invoice the orchestrator needs.
type DecodedBolt11 struct {
	PaymentHash string
	AmountMsat  *int64
	IsExpired   bool
}

// DecodedBolt12 is the subset of a decoded offer the orchestrator needs.
type DecodedBolt12 struct {
	OfferID    string
	AmountMsat *int64
}

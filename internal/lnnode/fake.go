package lnnode

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Fake is an in-memory Node used by orchestrator and session tests, in
// place of a live lnd instance. It mints deterministic, sequential
// payment-hash/offer ids so tests can assert on them.
type Fake struct {
	mu       sync.Mutex
	events   chan Event
	seq      int
	Invoices map[string]int64 // payment hash -> amount_msat
	Offers   map[string]bool
	Sends    map[string]SendResult // invoice/offer string -> result of the latest send of it
}

// NewFake constructs an empty Fake node.
func NewFake() *Fake {
	return &Fake{
		events:   make(chan Event, 64),
		Invoices: map[string]int64{},
		Offers:   map[string]bool{},
		Sends:    map[string]SendResult{},
	}
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%032d", prefix, f.seq)
}

func (f *Fake) MintBolt11(ctx context.Context, amountMsat int64, description string, expirySecs int64) (MintedInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash := f.nextID("h")
	f.Invoices[hash] = amountMsat
	expiresAt := time.Now().Add(time.Duration(expirySecs) * time.Second).UnixMilli()
	return MintedInvoice{PaymentHash: hash, PR: "lnbc_fake_" + hash, ExpiresAt: expiresAt}, nil
}

func (f *Fake) MintBolt12VariableAmount(ctx context.Context, description string) (MintedOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID("o")
	f.Offers[id] = true
	return MintedOffer{OfferID: id, PR: "lno_fake_" + id}, nil
}

func (f *Fake) SendBolt11(ctx context.Context, invoice string, amountMsat int64) (SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID("p")
	res := SendResult{PaymentID: id}
	f.Sends[invoice] = res
	return res, nil
}

func (f *Fake) SendBolt12(ctx context.Context, offer string, amountMsat int64) (SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID("p")
	res := SendResult{PaymentID: id}
	f.Sends[offer] = res
	return res, nil
}

// DecodeBolt11 recovers the payment hash the Fake embedded when minting
// the invoice (see MintBolt11's "lnbc_fake_<hash>" convention); invoices
// not minted by this Fake are treated as external, with the invoice string
// itself used verbatim as the payment hash.
func (f *Fake) DecodeBolt11(ctx context.Context, invoice string) (DecodedBolt11, error) {
	const prefix = "lnbc_fake_"
	if len(invoice) > len(prefix) && invoice[:len(prefix)] == prefix {
		return DecodedBolt11{PaymentHash: invoice[len(prefix):]}, nil
	}
	return DecodedBolt11{PaymentHash: invoice}, nil
}

// DecodeBolt12 recovers the offer id the Fake embedded when minting the
// offer (see MintBolt12VariableAmount's "lno_fake_<id>" convention).
func (f *Fake) DecodeBolt12(ctx context.Context, offer string) (DecodedBolt12, error) {
	const prefix = "lno_fake_"
	if len(offer) > len(prefix) && offer[:len(prefix)] == prefix {
		return DecodedBolt12{OfferID: offer[len(prefix):]}, nil
	}
	return DecodedBolt12{OfferID: offer}, nil
}

func (f *Fake) Events() <-chan Event { return f.events }

func (f *Fake) Start(ctx context.Context) error { return nil }

func (f *Fake) Stop() error { close(f.events); return nil }

// Emit pushes ev onto the fake node's event stream, as the reactor would
// observe from a real node.
func (f *Fake) Emit(ev Event) { f.events <- ev }

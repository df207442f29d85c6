package orchestrator

import (
	"go.uber.org/zap"

	"github.com/puncture-ln/punctured/internal/eventbus"
	"github.com/puncture-ln/punctured/internal/ledger"
	"github.com/puncture-ln/punctured/internal/lnnode"
	"github.com/puncture-ln/punctured/pkg/logger"
)

// HandleReceived implements "Settlement reconciliation" for an inbound
// payment (§4.4): look up the minted invoice/offer by its correlation key,
// insert the (idempotent) receive record, and emit Balance+Payment to the
// recipient. Not run under the send lock — receive-side operations rely
// on the ledger's own uniqueness/idempotency guarantees (§5).
func (o *Orchestrator) HandleReceived(ev lnnode.PaymentReceived) {
	var (
		userPK      string
		description string
		pr          string
	)

	switch ev.Kind {
	case lnnode.KindBolt11:
		inv, err := o.store.GetInvoice(ev.PaymentHash)
		if err != nil {
			o.onUnknownSettlement("bolt11", ev.PaymentHash, err)
			return
		}
		userPK, description, pr = inv.UserPK, inv.Description, inv.PR
	case lnnode.KindBolt12Offer:
		off, err := o.store.GetOffer(ev.OfferID)
		if err != nil {
			o.onUnknownSettlement("bolt12", ev.OfferID, err)
			return
		}
		userPK, description, pr = off.UserPK, off.Description, off.PR
	default:
		logger.Warn("orchestrator: dropping payment-received event with unexpected kind")
		return
	}

	if err := o.store.CreateReceive(ledger.Receive{
		ID: ev.PaymentID, UserPK: userPK, AmountMsat: ev.AmountMsat,
		Description: description, PR: pr, CreatedAt: o.now(),
	}); err != nil {
		logger.Error("orchestrator: create_receive failed", zap.Error(err))
		return
	}

	o.publishBalance(userPK)
	o.publish(userPK, eventbus.NewPayment(eventbus.PaymentEvent{
		ID: ev.PaymentID, PaymentType: eventbus.PaymentTypeReceive, AmountMsat: ev.AmountMsat,
		FeeMsat: 0, Description: description, Status: string(ledger.SendSuccessful), CreatedAt: o.now(),
	}))
}

// onUnknownSettlement handles "settled event references unknown
// invoice/offer" (§4.6): this daemon treats it as fatal, matching the
// ledger's broader "errors are fatal" philosophy (§7) — an operator must
// investigate rather than silently lose a settled payment.
func (o *Orchestrator) onUnknownSettlement(kind, key string, lookupErr error) {
	logger.Fatal("orchestrator: settled payment references unknown invoice/offer",
		zap.String("kind", kind), zap.String("key", key), zap.Error(lookupErr))
}

// HandleSuccessful implements settlement reconciliation for a completed
// outbound send (§4.4): mark it successful, reduce the reserved fee to the
// actual cost, and emit Update + a fresh Balance (since the reservation
// changes).
func (o *Orchestrator) HandleSuccessful(ev lnnode.PaymentSuccessful) {
	fee := int64(0)
	if ev.FeePaidMsat != nil {
		fee = *ev.FeePaidMsat
	}

	send, err := o.store.UpdateSendTerminal(ev.PaymentID, ledger.SendSuccessful, fee)
	if err != nil {
		if err == ledger.ErrNotFound {
			o.onUnknownSettlement("send", ev.PaymentID, err)
			return
		}
		logger.Error("orchestrator: update_send_terminal failed", zap.Error(err))
		return
	}

	o.publish(send.UserPK, eventbus.NewUpdate(eventbus.UpdateEvent{
		ID: send.ID, Status: string(ledger.SendSuccessful), FeeMsat: fee,
	}))
	o.publishBalance(send.UserPK)
}

// HandleFailed implements settlement reconciliation for a failed outbound
// send (§4.4): release the full reservation and emit Update + Balance.
func (o *Orchestrator) HandleFailed(ev lnnode.PaymentFailed) {
	send, err := o.store.UpdateSendTerminal(ev.PaymentID, ledger.SendFailed, 0)
	if err != nil {
		if err == ledger.ErrNotFound {
			o.onUnknownSettlement("send", ev.PaymentID, err)
			return
		}
		logger.Error("orchestrator: update_send_terminal failed", zap.Error(err))
		return
	}

	o.publish(send.UserPK, eventbus.NewUpdate(eventbus.UpdateEvent{
		ID: send.ID, Status: string(ledger.SendFailed), FeeMsat: 0,
	}))
	o.publishBalance(send.UserPK)
}

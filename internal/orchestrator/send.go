package orchestrator

import (
	"context"
	"fmt"

	"github.com/puncture-ln/punctured/internal/eventbus"
	"github.com/puncture-ln/punctured/internal/ledger"
)

// correlation abstracts over the bolt11 (payment hash) and bolt12 (offer
// id) internal-transfer detection keys of §4.4/§9 so Bolt11Send and
// Bolt12Send share one admission/detection/submission pipeline.
type correlation struct {
	id         string // payment hash or offer id
	amountMsat *int64 // requested amount on the minted invoice/offer, if fixed
}

// Bolt11Send validates and either records an internal transfer or submits
// an outbound bolt11 payment, under the send lock (§4.4).
func (o *Orchestrator) Bolt11Send(ctx context.Context, userPK, invoice string, amountMsat int64, lnAddress *string) error {
	if err := o.checkRegistered(userPK); err != nil {
		return err
	}
	if amountMsat < o.cfg.minAmountMsat() {
		return ErrAmountBelowMin
	}
	if amountMsat > o.cfg.maxAmountMsat() {
		return ErrAmountAboveMax
	}

	decoded, err := o.node.DecodeBolt11(ctx, invoice)
	if err != nil {
		return fmt.Errorf("orchestrator: decode bolt11: %w", err)
	}

	return o.send(ctx, userPK, correlation{id: decoded.PaymentHash, amountMsat: decoded.AmountMsat}, amountMsat, invoice, lnAddress,
		func(ctx context.Context) (string, error) {
			res, err := o.node.SendBolt11(ctx, invoice, amountMsat)
			if err != nil {
				return "", err
			}
			return res.PaymentID, nil
		})
}

// Bolt12Send is symmetric to Bolt11Send, keyed on offer id (§4.4).
func (o *Orchestrator) Bolt12Send(ctx context.Context, userPK, offer string, amountMsat int64) error {
	if err := o.checkRegistered(userPK); err != nil {
		return err
	}
	if amountMsat < o.cfg.minAmountMsat() {
		return ErrAmountBelowMin
	}
	if amountMsat > o.cfg.maxAmountMsat() {
		return ErrAmountAboveMax
	}

	decoded, err := o.node.DecodeBolt12(ctx, offer)
	if err != nil {
		return fmt.Errorf("orchestrator: decode bolt12: %w", err)
	}

	return o.send(ctx, userPK, correlation{id: decoded.OfferID, amountMsat: decoded.AmountMsat}, amountMsat, offer, nil,
		func(ctx context.Context) (string, error) {
			res, err := o.node.SendBolt12(ctx, offer, amountMsat)
			if err != nil {
				return "", err
			}
			return res.PaymentID, nil
		})
}

// send implements the admission → fee quote → balance check →
// internal-vs-external detection → submission pipeline common to
// Bolt11Send and Bolt12Send, holding the send lock throughout.
func (o *Orchestrator) send(ctx context.Context, userPK string, corr correlation, amountMsat int64, pr string, lnAddress *string, submit func(context.Context) (string, error)) error {
	o.sendLock.Lock()
	defer o.sendLock.Unlock()

	pending, err := o.store.CountPendingSends(userPK)
	if err != nil {
		return err
	}
	if pending >= o.cfg.MaxPendingPerUser {
		return ErrTooManyPendingSends
	}

	feeMsat := o.cfg.quoteFee(amountMsat)

	balance, err := o.store.UserBalance(userPK)
	if err != nil {
		return err
	}
	if balance < amountMsat+feeMsat {
		return ErrInsufficientBalance
	}

	target, lookupErr := o.lookupByCorrelation(corr)
	switch {
	case lookupErr == ledger.ErrNotFound:
		// external send
		paymentID, err := submit(ctx)
		if err != nil {
			return fmt.Errorf("orchestrator: submit send: %w", err)
		}
		now := o.now()
		if err := o.store.CreateSend(ledger.Send{
			ID: paymentID, UserPK: userPK, AmountMsat: amountMsat, FeeMsat: feeMsat,
			PR: pr, Status: ledger.SendPending, LnAddress: lnAddress, CreatedAt: now,
		}); err != nil {
			return err
		}
		o.publish(userPK, eventbus.NewPayment(eventbus.PaymentEvent{
			ID: paymentID, PaymentType: eventbus.PaymentTypeSend, AmountMsat: amountMsat,
			FeeMsat: feeMsat, Status: string(ledger.SendPending), LnAddress: lnAddress, CreatedAt: now,
		}))
		o.publishBalance(userPK)
		return nil
	case lookupErr != nil:
		return lookupErr
	}

	if target.userPK == userPK {
		return ErrSelfPayment
	}
	if target.amountMsat != nil && *target.amountMsat > amountMsat {
		return ErrAmountBelowRequested
	}

	return o.internalTransfer(userPK, target.userPK, amountMsat, feeMsat, "", pr)
}

// correlationTarget is the invoice/offer row matched by a correlation key.
type correlationTarget struct {
	userPK     string
	amountMsat *int64
}

func (o *Orchestrator) lookupByCorrelation(corr correlation) (correlationTarget, error) {
	if inv, err := o.store.GetInvoice(corr.id); err == nil {
		return correlationTarget{userPK: inv.UserPK, amountMsat: inv.AmountMsat}, nil
	} else if err != ledger.ErrNotFound {
		return correlationTarget{}, err
	}

	if off, err := o.store.GetOffer(corr.id); err == nil {
		return correlationTarget{userPK: off.UserPK, amountMsat: off.AmountMsat}, nil
	} else if err != ledger.ErrNotFound {
		return correlationTarget{}, err
	}

	return correlationTarget{}, ledger.ErrNotFound
}

// internalTransfer inserts the paired send/receive rows in a single
// ledger transaction and emits events to both parties. Caller must hold
// the send lock.
func (o *Orchestrator) internalTransfer(senderPK, receiverPK string, amountMsat, feeMsat int64, description, pr string) error {
	id, err := randomID32()
	if err != nil {
		return err
	}
	now := o.now()

	err = o.store.CreateInternalTransfer(ledger.InternalTransfer{
		Send: ledger.Send{
			ID: id, UserPK: senderPK, AmountMsat: amountMsat, FeeMsat: feeMsat,
			Description: description, PR: pr, Status: ledger.SendSuccessful, CreatedAt: now,
		},
		Receive: ledger.Receive{
			ID: id, UserPK: receiverPK, AmountMsat: amountMsat, Description: description, PR: pr, CreatedAt: now,
		},
	})
	if err != nil {
		return err
	}

	o.publish(senderPK, eventbus.NewPayment(eventbus.PaymentEvent{
		ID: id, PaymentType: eventbus.PaymentTypeSend, AmountMsat: amountMsat, FeeMsat: feeMsat,
		Description: description, Status: string(ledger.SendSuccessful), CreatedAt: now,
	}))
	o.publishBalance(senderPK)

	o.publish(receiverPK, eventbus.NewPayment(eventbus.PaymentEvent{
		ID: id, PaymentType: eventbus.PaymentTypeReceive, AmountMsat: amountMsat, FeeMsat: 0,
		Description: description, Status: string(ledger.SendSuccessful), CreatedAt: now,
	}))
	o.publishBalance(receiverPK)

	return nil
}

// RecoverResult is returned by Recover (§4.4, §6.1).
type RecoverResult struct {
	BalanceMsat int64
}

// Recover transfers recovery.user_pk's entire balance to userPK under the
// send lock, with fee=0 and description "Recovery" (§4.4).
func (o *Orchestrator) Recover(ctx context.Context, userPK, recoveryID string) (RecoverResult, error) {
	if err := o.checkRegistered(userPK); err != nil {
		return RecoverResult{}, err
	}

	recovery, err := o.store.GetRecovery(recoveryID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return RecoverResult{}, ErrUnknownRecovery
		}
		return RecoverResult{}, err
	}
	if recovery.ExpiresAt <= o.now() {
		return RecoverResult{}, ErrRecoveryExpired
	}
	if recovery.UserPK == userPK {
		return RecoverResult{}, ErrSelfRecovery
	}

	o.sendLock.Lock()
	defer o.sendLock.Unlock()

	balance, err := o.store.UserBalance(recovery.UserPK)
	if err != nil {
		return RecoverResult{}, err
	}
	if balance == 0 {
		return RecoverResult{}, ErrEmptySourceBalance
	}

	if err := o.internalTransfer(recovery.UserPK, userPK, balance, 0, "Recovery", recoveryID); err != nil {
		return RecoverResult{}, err
	}

	// Recoveries are one-shot by this daemon's chosen interpretation of
	// the open question in §9: delete on success in the same logical
	// operation as the transfer.
	if err := o.store.DeleteRecovery(recoveryID); err != nil {
		return RecoverResult{}, err
	}

	return RecoverResult{BalanceMsat: balance}, nil
}

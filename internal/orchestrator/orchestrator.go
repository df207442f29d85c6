package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/puncture-ln/punctured/internal/eventbus"
	"github.com/puncture-ln/punctured/internal/ledger"
	"github.com/puncture-ln/punctured/internal/lnnode"
	"github.com/puncture-ln/punctured/pkg/logger"
)

// EventPublisher is the narrow slice of eventbus.Bus the orchestrator
// depends on, accepted as an interface so tests can substitute a fake.
type EventPublisher interface {
	Publish(ctx context.Context, userPK string, ev eventbus.Event) error
}

// OfferCache is a narrow slice of pkg/cache.Cache used as a fast path in
// front of the ledger's bolt12 offer-reuse lookup (§4.4/§9's 24h reuse
// window). It is optional: a nil OfferCache just means every Bolt12Receive
// call falls through to the ledger, which remains the source of truth.
type OfferCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

const offerCacheTTL = 24 * time.Hour

func offerCacheKey(userPK string) string { return "punctured:offer:" + userPK }

// Orchestrator enforces every invariant on money movement described in
// §4.4, holding the process-wide send lock for the duration of any send's
// critical section.
type Orchestrator struct {
	store      *ledger.Store
	node       lnnode.Node
	bus        EventPublisher
	offerCache OfferCache
	cfg        Config

	// sendLock is the single process-wide mutex serializing all
	// balance-mutating send paths (§4.4, §5, §9). Receive-side
	// operations never take it.
	sendLock sync.Mutex

	// now is overridden in tests; defaults to the wall clock.
	now func() int64
}

// New constructs an Orchestrator with no offer cache; use WithOfferCache
// to attach one.
func New(store *ledger.Store, node lnnode.Node, bus EventPublisher, cfg Config) *Orchestrator {
	return &Orchestrator{
		store: store,
		node:  node,
		bus:   bus,
		cfg:   cfg,
		now:   func() int64 { return time.Now().UnixMilli() },
	}
}

// WithOfferCache attaches an OfferCache, returning o for chaining.
func (o *Orchestrator) WithOfferCache(c OfferCache) *Orchestrator {
	o.offerCache = c
	return o
}

func randomID32() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("orchestrator: generate id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// RegisterResult is returned by Register (§4.4, §6.1).
type RegisterResult struct {
	Network    string
	DaemonName string
}

// Register admits userPK into the custodial account set via inviteID.
// userPK is the transport identity of the connection, never user-supplied.
func (o *Orchestrator) Register(ctx context.Context, userPK, inviteID string) (RegisterResult, error) {
	invite, err := o.store.GetInvite(inviteID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return RegisterResult{}, ErrUnknownInvite
		}
		return RegisterResult{}, err
	}

	now := o.now()
	if invite.ExpiresAt <= now {
		return RegisterResult{}, ErrInviteExpired
	}

	count, err := o.store.CountInviteUsers(inviteID)
	if err != nil {
		return RegisterResult{}, err
	}
	if count >= invite.UserLimit {
		return RegisterResult{}, ErrInviteFull
	}

	if err := o.store.RegisterUser(userPK, inviteID, now); err != nil {
		return RegisterResult{}, err
	}

	return RegisterResult{Network: o.cfg.Network, DaemonName: o.cfg.DaemonName}, nil
}

// Bolt11Receive mints and persists a bolt11 invoice for userPK (§4.4).
func (o *Orchestrator) Bolt11Receive(ctx context.Context, userPK string, amountMsat int64, description string) (string, error) {
	if err := o.checkRegistered(userPK); err != nil {
		return "", err
	}
	if amountMsat < o.cfg.minAmountMsat() {
		return "", ErrAmountBelowMin
	}
	if amountMsat > o.cfg.maxAmountMsat() {
		return "", ErrAmountAboveMax
	}

	now := o.now()
	pending, err := o.store.CountPendingInvoices(userPK, now)
	if err != nil {
		return "", err
	}
	if pending >= o.cfg.MaxPendingPerUser {
		return "", ErrTooManyPendingInvoices
	}

	minted, err := o.node.MintBolt11(ctx, amountMsat, description, o.cfg.InvoiceExpirySecs)
	if err != nil {
		return "", fmt.Errorf("orchestrator: mint bolt11: %w", err)
	}

	amount := amountMsat
	err = o.store.CreateInvoice(ledger.Invoice{
		ID:          minted.PaymentHash,
		UserPK:      userPK,
		AmountMsat:  &amount,
		Description: description,
		PR:          minted.PR,
		ExpiresAt:   minted.ExpiresAt,
		CreatedAt:   now,
	})
	if err != nil {
		return "", err
	}

	return minted.PR, nil
}

// offerReuseWindowMillis is the 24h bolt12 offer-reuse policy of §4.4/§9.
const offerReuseWindowMillis = 24 * 60 * 60 * 1000

// Bolt12Receive returns userPK's reusable offer if minted within the last
// 24h, otherwise mints and persists a new one (§4.4).
func (o *Orchestrator) Bolt12Receive(ctx context.Context, userPK string) (string, error) {
	if err := o.checkRegistered(userPK); err != nil {
		return "", err
	}

	if o.offerCache != nil {
		if cached, err := o.offerCache.Get(ctx, offerCacheKey(userPK)); err != nil {
			logger.Warn("orchestrator: offer cache read failed, falling back to ledger", zap.Error(err))
		} else if cached != "" {
			return cached, nil
		}
	}

	now := o.now()
	existing, err := o.store.GetOfferByUser(userPK)
	if err == nil && now-existing.CreatedAt < offerReuseWindowMillis {
		o.cacheOffer(ctx, userPK, existing.PR)
		return existing.PR, nil
	}
	if err != nil && err != ledger.ErrNotFound {
		return "", err
	}

	minted, err := o.node.MintBolt12VariableAmount(ctx, "")
	if err != nil {
		return "", fmt.Errorf("orchestrator: mint bolt12: %w", err)
	}

	err = o.store.CreateOffer(ledger.Offer{
		ID:          minted.OfferID,
		UserPK:      userPK,
		Description: "",
		PR:          minted.PR,
		CreatedAt:   now,
	})
	if err != nil {
		return "", err
	}
	o.cacheOffer(ctx, userPK, minted.PR)
	return minted.PR, nil
}

func (o *Orchestrator) cacheOffer(ctx context.Context, userPK, pr string) {
	if o.offerCache == nil {
		return
	}
	if err := o.offerCache.Set(ctx, offerCacheKey(userPK), pr, offerCacheTTL); err != nil {
		logger.Warn("orchestrator: offer cache write failed", zap.Error(err))
	}
}

// SetRecoveryName validates and updates userPK's recovery name (§4.4).
func (o *Orchestrator) SetRecoveryName(ctx context.Context, userPK string, name *string) error {
	if err := o.checkRegistered(userPK); err != nil {
		return err
	}
	if name != nil {
		if err := validateRecoveryName(*name); err != nil {
			return err
		}
	}
	return o.store.SetRecoveryName(userPK, name)
}

func validateRecoveryName(name string) error {
	if len(name) == 0 {
		return ErrRecoveryNameEmpty
	}
	if len(name) > 20 {
		return ErrRecoveryNameTooLong
	}
	for _, r := range name {
		isASCIILetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !isASCIILetter && r != ' ' {
			return ErrRecoveryNameCharset
		}
	}
	return nil
}

func (o *Orchestrator) checkRegistered(userPK string) error {
	exists, err := o.store.UserExists(userPK)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotRegistered
	}
	return nil
}

func (o *Orchestrator) publish(userPK string, ev eventbus.Event) {
	if err := o.bus.Publish(context.Background(), userPK, ev); err != nil {
		logger.Error("orchestrator: publish failed", zap.String("user_pk", userPK), zap.Error(err))
	}
}

func (o *Orchestrator) publishBalance(userPK string) {
	balance, err := o.store.UserBalance(userPK)
	if err != nil {
		logger.Error("orchestrator: read balance for event", zap.Error(err))
		return
	}
	o.publish(userPK, eventbus.NewBalance(balance))
}

package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/puncture-ln/punctured/internal/eventbus"
	"github.com/puncture-ln/punctured/internal/ledger"
	"github.com/puncture-ln/punctured/internal/lnnode"
)

// recordingBus captures published events per user for assertions, standing
// in for eventbus.Bus (a Redis-backed implementation needs a live Redis).
type recordingBus struct {
	mu     sync.Mutex
	events map[string][]eventbus.Event
}

func newRecordingBus() *recordingBus {
	return &recordingBus{events: map[string][]eventbus.Event{}}
}

func (b *recordingBus) Publish(ctx context.Context, userPK string, ev eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[userPK] = append(b.events[userPK], ev)
	return nil
}

func (b *recordingBus) for_(userPK string) []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]eventbus.Event(nil), b.events[userPK]...)
}

func testConfig() Config {
	return Config{
		FeePPM: 5000, BaseFeeMsat: 10000, InvoiceExpirySecs: 3600,
		MinAmountSats: 1, MaxAmountSats: 100000, MaxPendingPerUser: 10,
		MaxConnectionsPerUser: 10, Network: "regtest", DaemonName: "test-daemon",
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *ledger.Store, *lnnode.Fake, *recordingBus) {
	t.Helper()
	store, err := ledger.Open(ledger.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	node := lnnode.NewFake()
	bus := newRecordingBus()
	o := New(store, node, bus, testConfig())
	return o, store, node, bus
}

func mustInvite(t *testing.T, store *ledger.Store, id string, limit, expiresAt int64) {
	t.Helper()
	require.NoError(t, store.CreateInvite(ledger.Invite{ID: id, UserLimit: limit, ExpiresAt: expiresAt, CreatedAt: 0}))
}

func TestRegisterSucceedsAndEnforcesLimits(t *testing.T) {
	o, store, _, _ := newTestOrchestrator(t)
	mustInvite(t, store, "inv1", 1, 1_000_000_000_000)

	res, err := o.Register(context.Background(), "alice", "inv1")
	require.NoError(t, err)
	assert.Equal(t, "regtest", res.Network)

	_, err = o.Register(context.Background(), "bob", "inv1")
	assert.ErrorIs(t, err, ErrInviteFull)

	_, err = o.Register(context.Background(), "carol", "no-such-invite")
	assert.ErrorIs(t, err, ErrUnknownInvite)
}

func TestRegisterExpiredInvite(t *testing.T) {
	o, store, _, _ := newTestOrchestrator(t)
	mustInvite(t, store, "inv1", 10, 0)

	_, err := o.Register(context.Background(), "alice", "inv1")
	assert.ErrorIs(t, err, ErrInviteExpired)
}

// S1 — Receive from outside.
func TestScenarioReceiveFromOutside(t *testing.T) {
	o, store, node, bus := newTestOrchestrator(t)
	mustInvite(t, store, "inv1", 10, 1_000_000_000_000)
	_, err := o.Register(context.Background(), "alice", "inv1")
	require.NoError(t, err)

	pr, err := o.Bolt11Receive(context.Background(), "alice", 1_000_000, "")
	require.NoError(t, err)
	assert.NotEmpty(t, pr)

	var hash string
	for h := range node.Invoices {
		hash = h
	}

	o.HandleReceived(lnnode.PaymentReceived{PaymentID: hash, AmountMsat: 1_000_000, Kind: lnnode.KindBolt11, PaymentHash: hash})

	balance, err := store.UserBalance("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), balance)

	events := bus.for_("alice")
	require.Len(t, events, 2)
	assert.Equal(t, eventbus.KindBalance, events[0].Kind)
	assert.Equal(t, eventbus.KindPayment, events[1].Kind)
	assert.Equal(t, eventbus.PaymentTypeReceive, events[1].Payment.PaymentType)
}

// S2 — Internal transfer between two users.
func TestScenarioInternalTransfer(t *testing.T) {
	o, store, _, bus := newTestOrchestrator(t)
	mustInvite(t, store, "inv1", 10, 1_000_000_000_000)
	ctx := context.Background()
	_, err := o.Register(ctx, "alice", "inv1")
	require.NoError(t, err)
	_, err = o.Register(ctx, "bob", "inv1")
	require.NoError(t, err)

	require.NoError(t, store.CreateReceive(ledger.Receive{ID: "seed", UserPK: "alice", AmountMsat: 1_000_000, CreatedAt: 0}))

	invoiceB, err := o.Bolt11Receive(ctx, "bob", 500_000, "")
	require.NoError(t, err)

	err = o.Bolt11Send(ctx, "alice", invoiceB, 500_000, nil)
	require.NoError(t, err)

	aliceBalance, err := store.UserBalance("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000-512_500), aliceBalance)

	bobBalance, err := store.UserBalance("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), bobBalance)

	aliceEvents := bus.for_("alice")
	require.Len(t, aliceEvents, 2)
	require.Equal(t, eventbus.KindPayment, aliceEvents[0].Kind)
	assert.Equal(t, int64(12_500), aliceEvents[0].Payment.FeeMsat)

	bobEvents := bus.for_("bob")
	// bolt11_receive publishes nothing; only the internal transfer does.
	require.Len(t, bobEvents, 2)
	require.Equal(t, eventbus.KindPayment, bobEvents[0].Kind)
	assert.Equal(t, eventbus.PaymentTypeReceive, bobEvents[0].Payment.PaymentType)
}

// S7 — Self-payment rejected.
func TestScenarioSelfPaymentRejected(t *testing.T) {
	o, store, _, _ := newTestOrchestrator(t)
	mustInvite(t, store, "inv1", 10, 1_000_000_000_000)
	ctx := context.Background()
	_, err := o.Register(ctx, "alice", "inv1")
	require.NoError(t, err)

	require.NoError(t, store.CreateReceive(ledger.Receive{ID: "seed", UserPK: "alice", AmountMsat: 1_000_000, CreatedAt: 0}))

	invoice, err := o.Bolt11Receive(ctx, "alice", 500_000, "")
	require.NoError(t, err)

	err = o.Bolt11Send(ctx, "alice", invoice, 500_000, nil)
	assert.ErrorIs(t, err, ErrSelfPayment)

	pending, err := store.CountPendingSends("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending)
}

// S8 — Pending cap.
func TestScenarioPendingSendCap(t *testing.T) {
	o, store, _, _ := newTestOrchestrator(t)
	o.cfg.MaxPendingPerUser = 2
	mustInvite(t, store, "inv1", 10, 1_000_000_000_000)
	ctx := context.Background()
	_, err := o.Register(ctx, "alice", "inv1")
	require.NoError(t, err)
	require.NoError(t, store.CreateReceive(ledger.Receive{ID: "seed", UserPK: "alice", AmountMsat: 10_000_000, CreatedAt: 0}))

	for i, invoice := range []string{"ext-1", "ext-2"} {
		err := o.Bolt11Send(ctx, "alice", invoice, 1000, nil)
		require.NoError(t, err, "send %d", i)
	}

	err = o.Bolt11Send(ctx, "alice", "ext-3", 1000, nil)
	assert.ErrorIs(t, err, ErrTooManyPendingSends)
}

// S3/S4 — external send success and failure adjust balance.
func TestScenarioExternalSendSuccessAndFailure(t *testing.T) {
	o, store, node, _ := newTestOrchestrator(t)
	mustInvite(t, store, "inv1", 10, 1_000_000_000_000)
	ctx := context.Background()
	_, err := o.Register(ctx, "bob", "inv1")
	require.NoError(t, err)
	require.NoError(t, store.CreateReceive(ledger.Receive{ID: "seed", UserPK: "bob", AmountMsat: 400_000, CreatedAt: 0}))

	err = o.Bolt11Send(ctx, "bob", "external-invoice-1", 100_000, nil)
	require.NoError(t, err)

	balance, err := store.UserBalance("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(400_000-110_500), balance)

	pending, err := store.CountPendingSends("bob")
	require.NoError(t, err)
	require.Equal(t, int64(1), pending)

	paymentID := node.Sends["external-invoice-1"].PaymentID
	o.HandleSuccessful(lnnode.PaymentSuccessful{PaymentID: paymentID})

	balance, err = store.UserBalance("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(400_000-100_000), balance, "success with no reported fee debits only the amount")

	err = o.Bolt11Send(ctx, "bob", "external-invoice-2", 100_000, nil)
	require.NoError(t, err)

	balance, err = store.UserBalance("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(300_000-110_500), balance)

	o.HandleFailed(lnnode.PaymentFailed{PaymentID: node.Sends["external-invoice-2"].PaymentID})

	balance, err = store.UserBalance("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(300_000), balance, "failed sends release the full reservation")
}

func TestRecoverTransfersEntireBalance(t *testing.T) {
	o, store, _, bus := newTestOrchestrator(t)
	mustInvite(t, store, "inv1", 10, 1_000_000_000_000)
	ctx := context.Background()
	_, err := o.Register(ctx, "alice", "inv1")
	require.NoError(t, err)
	_, err = o.Register(ctx, "carl", "inv1")
	require.NoError(t, err)
	require.NoError(t, store.CreateReceive(ledger.Receive{ID: "seed", UserPK: "alice", AmountMsat: 777_000, CreatedAt: 0}))

	require.NoError(t, store.CreateRecovery(ledger.Recovery{ID: "rec1", UserPK: "alice", ExpiresAt: 1_000_000_000_000, CreatedAt: 0}))

	res, err := o.Recover(ctx, "carl", "rec1")
	require.NoError(t, err)
	assert.Equal(t, int64(777_000), res.BalanceMsat)

	aliceBalance, err := store.UserBalance("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), aliceBalance)

	_, err = store.GetRecovery("rec1")
	assert.ErrorIs(t, err, ledger.ErrNotFound, "recovery must be one-shot")

	_, err = o.Recover(ctx, "alice", "rec1")
	assert.ErrorIs(t, err, ErrUnknownRecovery)

	_ = bus
}

func TestRecoverRejectsSelfRecovery(t *testing.T) {
	o, store, _, _ := newTestOrchestrator(t)
	mustInvite(t, store, "inv1", 10, 1_000_000_000_000)
	ctx := context.Background()
	_, err := o.Register(ctx, "alice", "inv1")
	require.NoError(t, err)
	require.NoError(t, store.CreateReceive(ledger.Receive{ID: "seed", UserPK: "alice", AmountMsat: 1, CreatedAt: 0}))
	require.NoError(t, store.CreateRecovery(ledger.Recovery{ID: "rec1", UserPK: "alice", ExpiresAt: 1_000_000_000_000, CreatedAt: 0}))

	_, err = o.Recover(ctx, "alice", "rec1")
	assert.ErrorIs(t, err, ErrSelfRecovery)
}

func TestSetRecoveryNameValidation(t *testing.T) {
	o, store, _, _ := newTestOrchestrator(t)
	mustInvite(t, store, "inv1", 10, 1_000_000_000_000)
	ctx := context.Background()
	_, err := o.Register(ctx, "alice", "inv1")
	require.NoError(t, err)

	empty := ""
	assert.ErrorIs(t, o.SetRecoveryName(ctx, "alice", &empty), ErrRecoveryNameEmpty)

	tooLong := "this name is definitely too long"
	assert.ErrorIs(t, o.SetRecoveryName(ctx, "alice", &tooLong), ErrRecoveryNameTooLong)

	badCharset := "alice123"
	assert.ErrorIs(t, o.SetRecoveryName(ctx, "alice", &badCharset), ErrRecoveryNameCharset)

	valid := "Alice Doe"
	require.NoError(t, o.SetRecoveryName(ctx, "alice", &valid))

	u, err := store.GetUser("alice")
	require.NoError(t, err)
	require.NotNil(t, u.RecoveryName)
	assert.Equal(t, valid, *u.RecoveryName)
}

// fakeOfferCache is an in-memory stand-in for pkg/cache.Cache (a real one
// needs a live Redis).
type fakeOfferCache struct {
	mu    sync.Mutex
	store map[string]string
	gets  int
}

func newFakeOfferCache() *fakeOfferCache {
	return &fakeOfferCache{store: map[string]string{}}
}

func (c *fakeOfferCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.store[key], nil
}

func (c *fakeOfferCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = value.(string)
	return nil
}

func TestBolt12ReceiveServesFromCacheWithoutTouchingLedgerAgain(t *testing.T) {
	o, store, node, _ := newTestOrchestrator(t)
	cache := newFakeOfferCache()
	o.WithOfferCache(cache)
	mustInvite(t, store, "inv1", 10, 1_000_000_000_000)
	ctx := context.Background()
	_, err := o.Register(ctx, "alice", "inv1")
	require.NoError(t, err)

	first, err := o.Bolt12Receive(ctx, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, cache.store[offerCacheKey("alice")])

	offersBefore := len(node.Offers)
	second, err := o.Bolt12Receive(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, offersBefore, len(node.Offers), "cache hit must not mint a new offer")
}

func TestBolt12ReceiveReusesOfferWithin24Hours(t *testing.T) {
	o, store, _, _ := newTestOrchestrator(t)
	mustInvite(t, store, "inv1", 10, 1_000_000_000_000)
	ctx := context.Background()
	_, err := o.Register(ctx, "alice", "inv1")
	require.NoError(t, err)

	first, err := o.Bolt12Receive(ctx, "alice")
	require.NoError(t, err)

	second, err := o.Bolt12Receive(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first, second, "offer should be reused within 24h")
}

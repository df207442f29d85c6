package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRegisterUserIsInsertIfAbsent(t *testing.T) {
	s := openTestStore(t)

	exists, err := s.UserExists("pk1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.RegisterUser("pk1", "invite1", 100))
	require.NoError(t, s.RegisterUser("pk1", "invite1", 100))

	exists, err = s.UserExists("pk1")
	require.NoError(t, err)
	assert.True(t, exists)

	count, err := s.CountInviteUsers("invite1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUserBalanceFromReceivesAndSends(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RegisterUser("alice", "inv", 0))

	require.NoError(t, s.CreateReceive(Receive{ID: "r1", UserPK: "alice", AmountMsat: 1_000_000, CreatedAt: 1}))

	balance, err := s.UserBalance("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), balance)

	require.NoError(t, s.CreateSend(Send{
		ID: "s1", UserPK: "alice", AmountMsat: 500_000, FeeMsat: 12_500,
		Status: SendPending, CreatedAt: 2,
	}))

	balance, err = s.UserBalance("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000-512_500), balance)

	_, err = s.UpdateSendTerminal("s1", SendFailed, 0)
	require.NoError(t, err)

	balance, err = s.UserBalance("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), balance, "failed sends do not debit")
}

func TestCreateReceiveIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RegisterUser("alice", "inv", 0))

	require.NoError(t, s.CreateReceive(Receive{ID: "r1", UserPK: "alice", AmountMsat: 1000, CreatedAt: 1}))
	require.NoError(t, s.CreateReceive(Receive{ID: "r1", UserPK: "alice", AmountMsat: 1000, CreatedAt: 1}))

	balance, err := s.UserBalance("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance, "duplicate receive must not double-credit")
}

func TestUpdateSendTerminalTransitionsOnce(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RegisterUser("alice", "inv", 0))
	require.NoError(t, s.CreateSend(Send{ID: "s1", UserPK: "alice", AmountMsat: 1000, FeeMsat: 10, Status: SendPending, CreatedAt: 1}))

	updated, err := s.UpdateSendTerminal("s1", SendSuccessful, 5)
	require.NoError(t, err)
	assert.Equal(t, SendSuccessful, updated.Status)
	assert.Equal(t, int64(5), updated.FeeMsat)

	_, err = s.UpdateSendTerminal("s1", SendFailed, 0)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreateInternalTransferInsertsBothRows(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RegisterUser("alice", "inv", 0))
	require.NoError(t, s.RegisterUser("bob", "inv", 0))
	require.NoError(t, s.CreateReceive(Receive{ID: "seed", UserPK: "alice", AmountMsat: 1_000_000, CreatedAt: 1}))

	err := s.CreateInternalTransfer(InternalTransfer{
		Send:    Send{ID: "xfer1", UserPK: "alice", AmountMsat: 500_000, FeeMsat: 12_500, Status: SendSuccessful, Description: "", CreatedAt: 2},
		Receive: Receive{ID: "xfer1", UserPK: "bob", AmountMsat: 500_000, CreatedAt: 2},
	})
	require.NoError(t, err)

	aliceBalance, err := s.UserBalance("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000-512_500), aliceBalance)

	bobBalance, err := s.UserBalance("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), bobBalance)
}

func TestCountPendingInvoicesExcludesSettledAndExpired(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RegisterUser("alice", "inv", 0))

	require.NoError(t, s.CreateInvoice(Invoice{ID: "i1", UserPK: "alice", Description: "", PR: "lnbc1", ExpiresAt: 1000, CreatedAt: 1}))
	require.NoError(t, s.CreateInvoice(Invoice{ID: "i2", UserPK: "alice", Description: "", PR: "lnbc2", ExpiresAt: 10, CreatedAt: 1}))
	require.NoError(t, s.CreateInvoice(Invoice{ID: "i3", UserPK: "alice", Description: "", PR: "lnbc3", ExpiresAt: 1000, CreatedAt: 1}))
	require.NoError(t, s.CreateReceive(Receive{ID: "i3", UserPK: "alice", AmountMsat: 1, CreatedAt: 1}))

	count, err := s.CountPendingInvoices("alice", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "i1 pending; i2 expired; i3 settled")
}

func TestGetOfferByUserReturnsMostRecent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RegisterUser("alice", "inv", 0))

	require.NoError(t, s.CreateOffer(Offer{ID: "o1", UserPK: "alice", Description: "", PR: "lno1", CreatedAt: 1}))
	require.NoError(t, s.CreateOffer(Offer{ID: "o2", UserPK: "alice", Description: "", PR: "lno2", CreatedAt: 2}))

	got, err := s.GetOfferByUser("alice")
	require.NoError(t, err)
	assert.Equal(t, "o2", got.ID)
}

func TestGetNotFoundSentinel(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetInvite("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetUser("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetRecovery("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

package ledger

// SendStatus is the lifecycle state of a Send record (§3).
type SendStatus string

const (
	SendPending    SendStatus = "pending"
	SendSuccessful SendStatus = "successful"
	SendFailed     SendStatus = "failed"
)

// User mirrors the User entity of §3.
type User struct {
	PK           string
	InviteID     string
	RecoveryName *string
	CreatedAt    int64
}

// UserInfo is a User with its computed balance, returned by ListUsers.
type UserInfo struct {
	User
	BalanceMsat int64
}

// Invite mirrors the Invite entity of §3.
type Invite struct {
	ID        string
	UserLimit int64
	ExpiresAt int64
	CreatedAt int64
}

// Recovery mirrors the Recovery entity of §3.
type Recovery struct {
	ID        string
	UserPK    string
	ExpiresAt int64
	CreatedAt int64
}

// Invoice mirrors the minted-bolt11 Invoice entity of §3.
type Invoice struct {
	ID          string
	UserPK      string
	AmountMsat  *int64
	Description string
	PR          string
	ExpiresAt   int64
	CreatedAt   int64
}

// Offer mirrors the minted-bolt12 Offer entity of §3.
type Offer struct {
	ID          string
	UserPK      string
	AmountMsat  *int64
	Description string
	PR          string
	ExpiresAt   *int64
	CreatedAt   int64
}

// Receive mirrors the Receive record entity of §3.
type Receive struct {
	ID          string
	UserPK      string
	AmountMsat  int64
	Description string
	PR          string
	CreatedAt   int64
}

// Send mirrors the Send record entity of §3.
type Send struct {
	ID          string
	UserPK      string
	AmountMsat  int64
	FeeMsat     int64
	Description string
	PR          string
	Status      SendStatus
	LnAddress   *string
	CreatedAt   int64
}

// InternalTransfer bundles the paired Send/Receive rows an internal
// transfer inserts in a single transaction (§4.4 "internal transfer").
type InternalTransfer struct {
	Send    Send
	Receive Receive
}

// Package orchestrator implements the payment state machine of §4.4: fee
// quoting, admission control, internal-transfer detection, outbound
// attempt submission, and settlement reconciliation, all serialized on the
// send lock for balance-mutating operations.
package orchestrator

import "errors"

// Error taxonomy surfaced to clients, stringly but semantically stable
// (§7). The session layer maps these to the wire error variant.
var (
	ErrUnknownInvite = errors.New("UnknownInvite")
	ErrInviteExpired = errors.New("InviteExpired")
	ErrInviteFull    = errors.New("InviteFull")

	ErrUnknownRecovery   = errors.New("UnknownRecovery")
	ErrRecoveryExpired   = errors.New("RecoveryExpired")
	ErrSelfRecovery      = errors.New("SelfRecovery")
	ErrEmptySourceBalance = errors.New("EmptySourceBalance")

	ErrAmountBelowMin        = errors.New("AmountBelowMin")
	ErrAmountAboveMax        = errors.New("AmountAboveMax")
	ErrTooManyPendingInvoices = errors.New("TooManyPendingInvoices")
	ErrTooManyPendingSends    = errors.New("TooManyPendingSends")

	ErrInsufficientBalance = errors.New("InsufficientBalance")
	ErrSelfPayment         = errors.New("SelfPayment")
	ErrAmountBelowRequested = errors.New("AmountBelowRequested")
	ErrInvalidOffer        = errors.New("InvalidOffer")

	ErrRecoveryNameEmpty   = errors.New("RecoveryNameEmpty")
	ErrRecoveryNameTooLong = errors.New("RecoveryNameTooLong")
	ErrRecoveryNameCharset = errors.New("RecoveryNameCharset")

	// ErrUserNotRegistered is raised by operations that require a
	// registered caller; the session layer maps it to Unauthenticated.
	ErrUserNotRegistered = errors.New("user not registered")
)
